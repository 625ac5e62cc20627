// Package truncate shortens fragment text so it fits a token limit.
//
// It is used for the "truncate" oversize policy: a fragment that alone
// exceeds the per-batch limit is cut down before being sent, instead of being
// isolated or skipped. Cuts prefer line boundaries so a truncated diff hunk
// still reads as whole lines.
//
// Three strategies are available:
//
//   - FromEnd: keep the beginning, drop the end (default)
//   - FromMiddle: keep both ends, drop the middle
//   - FromStart: keep the end, drop the beginning
//
// Usage:
//
//	tr := truncate.New(truncate.FromMiddle, counter)
//	text, cut := tr.Truncate(hunk, 2000)
//
// All truncation counts runes, never splitting a multi-byte character.
package truncate
