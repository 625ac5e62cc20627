package truncate

import "strings"

// truncateEnd keeps the longest prefix that fits together with the marker.
func (t *Truncator) truncateEnd(text string, maxTokens int) string {
	if !t.counter.FitsInLimit(t.marker, maxTokens) {
		return t.marker
	}

	runes := []rune(text)
	n := longest(len(runes), func(n int) bool {
		return t.counter.FitsInLimit(string(runes[:n])+t.marker, maxTokens)
	})
	n = snapPrefix(runes, n)
	if n == 0 {
		return t.marker
	}
	return string(runes[:n]) + t.marker
}

// truncateMiddle keeps a prefix and a suffix of roughly equal size.
func (t *Truncator) truncateMiddle(text string, maxTokens int) string {
	if !t.counter.FitsInLimit(t.marker, maxTokens) {
		return t.marker
	}

	runes := []rune(text)
	half := (maxTokens - t.counter.Count(t.marker)) / 2

	head := longest(len(runes), func(n int) bool {
		return t.counter.FitsInLimit(string(runes[:n]), half)
	})
	head = snapPrefix(runes, head)

	build := func(tailStart int) string {
		var sb strings.Builder
		sb.WriteString(string(runes[:head]))
		sb.WriteString(t.marker)
		sb.WriteString(string(runes[tailStart:]))
		return sb.String()
	}

	// Grow the tail from the end while the whole result still fits.
	size := longest(len(runes)-head, func(n int) bool {
		return t.counter.FitsInLimit(build(len(runes)-n), maxTokens)
	})
	tailStart := len(runes) - size
	tailStart = head + snapSuffix(runes[head:], tailStart-head)

	return build(tailStart)
}

// truncateStart keeps the longest suffix that fits together with the marker.
func (t *Truncator) truncateStart(text string, maxTokens int) string {
	if !t.counter.FitsInLimit(t.marker, maxTokens) {
		return t.marker
	}

	runes := []rune(text)
	size := longest(len(runes), func(n int) bool {
		return t.counter.FitsInLimit(t.marker+string(runes[len(runes)-n:]), maxTokens)
	})
	start := snapSuffix(runes, len(runes)-size)
	if start >= len(runes) {
		return t.marker
	}
	return t.marker + string(runes[start:])
}

// longest binary-searches the largest n in [0, max] for which fits(n) holds,
// assuming fits is monotonic and fits(0) holds.
func longest(max int, fits func(n int) bool) int {
	low, high := 0, max
	for low < high {
		mid := (low + high + 1) / 2
		if fits(mid) {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low
}

// snapPrefix shortens a prefix of length n to end just after a newline, as
// long as that keeps at least half of it.
func snapPrefix(runes []rune, n int) int {
	if n >= len(runes) {
		return n
	}
	for i := n - 1; i >= n/2 && i >= 0; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return n
}

// snapSuffix moves a suffix start forward to just after a newline, as long
// as that keeps at least half of the suffix.
func snapSuffix(runes []rune, start int) int {
	if start <= 0 || start >= len(runes) {
		return start
	}
	if runes[start-1] == '\n' {
		return start
	}
	limit := start + (len(runes)-start)/2
	for i := start; i < limit; i++ {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return start
}
