package fragment

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrBadPattern is returned by PathFilter.Validate for malformed globs.
var ErrBadPattern = errors.New("bad path pattern")

// PathFilter selects which changed files contribute fragments.
// Patterns use doublestar syntax, so "**" crosses directories. Each is
// tried against the full slash-separated path and its base name; a
// trailing "/" matches a directory prefix.
type PathFilter struct {
	Include []string
	Exclude []string
}

// Validate reports the first malformed pattern.
func (pf PathFilter) Validate() error {
	for _, list := range [][]string{pf.Include, pf.Exclude} {
		for _, pat := range list {
			if strings.HasSuffix(pat, "/") {
				continue
			}
			if !doublestar.ValidatePattern(pat) {
				return fmt.Errorf("%w: %q", ErrBadPattern, pat)
			}
		}
	}
	return nil
}

// Allows reports whether p passes the filter. An empty Include list allows
// everything not excluded. Malformed patterns never match; call Validate
// to reject them up front.
func (pf PathFilter) Allows(p string) bool {
	if matchAny(pf.Exclude, p) {
		return false
	}
	if len(pf.Include) == 0 {
		return true
	}
	return matchAny(pf.Include, p)
}

func matchAny(patterns []string, p string) bool {
	base := path.Base(p)
	for _, pat := range patterns {
		if strings.HasSuffix(pat, "/") {
			if strings.HasPrefix(p, pat) {
				return true
			}
			continue
		}
		if ok, err := doublestar.Match(pat, p); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, base); err == nil && ok {
			return true
		}
	}
	return false
}
