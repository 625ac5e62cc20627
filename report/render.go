package report

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/whitecircle/policybot/batch"
	"github.com/whitecircle/policybot/check"
	"github.com/whitecircle/policybot/fragment"
	"github.com/whitecircle/policybot/policy"
	"github.com/whitecircle/policybot/pull"
	"github.com/whitecircle/policybot/truncate"
)

// Marker identifies the bot's own pull-request comment.
const Marker = "<!-- policybot:check -->"

const (
	// DefaultTitle heads the comment.
	DefaultTitle = "policybot"

	// DefaultMaxViolations caps the violations listed in one comment.
	DefaultMaxViolations = 20

	// DefaultExcerptLines caps the lines quoted from a flagged fragment.
	DefaultExcerptLines = 8
)

var (
	//go:embed templates/comment.md.tmpl
	commentTemplate string

	//go:embed templates/stats.txt.tmpl
	statsTemplate string
)

// Options control comment rendering. Zero values select the defaults;
// a negative ExcerptLines omits excerpts.
type Options struct {
	Title         string
	MaxViolations int
	ExcerptLines  int

	// RunURL links the comment to the workflow run that produced it.
	RunURL string
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.MaxViolations <= 0 {
		o.MaxViolations = DefaultMaxViolations
	}
	if o.ExcerptLines == 0 {
		o.ExcerptLines = DefaultExcerptLines
	}
	return o
}

type violationView struct {
	Label    string
	Source   string
	Names    []string
	Policies []policy.PolicyResult
	Lang     string
	Excerpt  string
}

type commentView struct {
	Marker     string
	Title      string
	Icon       string
	Summary    string
	Violations []violationView
	Hidden     int
	Skipped    []batch.Skipped
	Fragments  int
	Batches    int
	Tokens     int
	RunURL     string
}

// Render returns the markdown comment body for res.
func Render(res *check.Result, opts Options) (string, error) {
	opts = opts.withDefaults()

	view := commentView{
		Marker:    Marker,
		Title:     opts.Title,
		Icon:      icon(res.Status()),
		Summary:   Summary(res),
		Skipped:   res.Skipped,
		Fragments: res.Fragments,
		Batches:   len(res.Batches),
		Tokens:    res.Tokens,
		RunURL:    opts.RunURL,
	}

	violations := res.Violations()
	if len(violations) > opts.MaxViolations {
		view.Hidden = len(violations) - opts.MaxViolations
		violations = violations[:opts.MaxViolations]
	}
	for _, v := range violations {
		view.Violations = append(view.Violations, newViolationView(res, v, opts.ExcerptLines))
	}

	return NewEngine().Render("comment", commentTemplate, view)
}

func newViolationView(res *check.Result, v check.Violation, excerptLines int) violationView {
	vv := violationView{
		Label:    "Batch",
		Source:   fmt.Sprintf("#%d", v.Batch),
		Policies: v.Policies,
	}
	for _, p := range v.Policies {
		vv.Names = append(vv.Names, p.Name)
	}
	if v.SourceID == "" {
		return vv
	}

	vv.Source = v.SourceID
	f, ok := findFragment(res, v)
	if !ok {
		return vv
	}
	vv.Label = capitalize(f.Kind.Label())
	if excerptLines > 0 {
		vv.Excerpt = excerpt(f.Text, excerptLines)
	}
	if f.Kind == fragment.Diff {
		vv.Lang = "diff"
	}
	return vv
}

func findFragment(res *check.Result, v check.Violation) (fragment.Fragment, bool) {
	for _, br := range res.Batches {
		if br.Index != v.Batch {
			continue
		}
		for _, f := range br.Batch.Fragments {
			if f.SourceID == v.SourceID {
				return f, true
			}
		}
	}
	return fragment.Fragment{}, false
}

// Summary returns a one-line description of res for workflow outputs.
func Summary(res *check.Result) string {
	var msg string
	switch res.Status() {
	case check.StatusSkipped:
		msg = "No changes to check"
	case check.StatusFailed:
		violations := res.Violations()
		msg = fmt.Sprintf("Found %d policy %s (%s) in %d %s",
			len(violations), plural(len(violations), "violation", "violations"),
			strings.Join(policyNames(violations), ", "),
			res.Fragments, plural(res.Fragments, "fragment", "fragments"))
	default:
		msg = fmt.Sprintf("No policy violations in %d %s across %d %s",
			res.Fragments, plural(res.Fragments, "fragment", "fragments"),
			len(res.Batches), plural(len(res.Batches), "batch", "batches"))
	}
	if n := len(res.Skipped); n > 0 {
		msg += fmt.Sprintf("; %d oversized %s not checked", n, plural(n, "fragment", "fragments"))
	}
	return msg
}

// Stats returns the plain-text statistics report for a pull request.
func Stats(ref pull.Ref, stats pull.Stats) (string, error) {
	return NewEngine().Render("stats", statsTemplate, struct {
		Ref   pull.Ref
		Stats pull.Stats
	}{ref, stats})
}

// StatsMessage is the one-line statistics summary for workflow outputs.
func StatsMessage(ref pull.Ref, stats pull.Stats) string {
	return fmt.Sprintf("Analyzed PR #%d with %d files and %d line changes",
		ref.Number, len(stats.Files), stats.LineChanges())
}

func policyNames(violations []check.Violation) []string {
	var names []string
	for _, v := range violations {
		for _, p := range v.Policies {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func icon(s check.Status) string {
	switch s {
	case check.StatusFailed:
		return ":x:"
	case check.StatusPassed:
		return ":white_check_mark:"
	default:
		return ":information_source:"
	}
}

func excerpt(text string, lines int) string {
	return strings.TrimRight(truncate.ToLines(text, lines), "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
