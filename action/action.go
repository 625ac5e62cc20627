// Package action adapts the bot to the GitHub Actions runtime: inputs from
// INPUT_* variables, step outputs, workflow commands and the step summary.
package action

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

// Output statuses.
const (
	StatusSuccess = "success"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// NotPullRequestMessage is reported when the workflow was not triggered by
// a pull request.
const NotPullRequestMessage = "Not a pull request event"

// DefaultAPIEndpoint is used when the api_endpoint input is empty.
const DefaultAPIEndpoint = "https://api.github.com"

// ErrMissingInput indicates a required input or environment variable is
// unset.
var ErrMissingInput = errors.New("required input not set")

// Inputs are the action's configured inputs and the runner context it
// needs.
type Inputs struct {
	GitHubToken    string
	APIKey         string
	APIEndpoint    string
	PolicyEndpoint string
	ConfigPath     string

	Repository string
	EventPath  string
	RunURL     string
}

// Action wraps the runner environment. Construct with New.
type Action struct {
	gha    *githubactions.Action
	getenv func(string) string
}

// New returns an Action writing workflow commands to w and reading the
// environment through getenv. A nil w selects os.Stdout; a nil getenv
// selects os.Getenv.
func New(w io.Writer, getenv func(string) string) *Action {
	if w == nil {
		w = os.Stdout
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Action{
		gha:    githubactions.New(githubactions.WithWriter(w), githubactions.WithGetenv(getenv)),
		getenv: getenv,
	}
}

// Inputs reads the action inputs. The policy service inputs are only
// required when requirePolicy is set. Secrets are masked in the job log.
func (a *Action) Inputs(requirePolicy bool) (Inputs, error) {
	in := Inputs{
		GitHubToken:    a.gha.GetInput("github_token"),
		APIKey:         a.gha.GetInput("api_key"),
		APIEndpoint:    a.gha.GetInput("api_endpoint"),
		PolicyEndpoint: a.gha.GetInput("policy_endpoint"),
		ConfigPath:     a.gha.GetInput("config_path"),
		Repository:     a.getenv("GITHUB_REPOSITORY"),
		EventPath:      a.getenv("GITHUB_EVENT_PATH"),
	}
	if in.APIEndpoint == "" {
		in.APIEndpoint = DefaultAPIEndpoint
	}
	if server, run := a.getenv("GITHUB_SERVER_URL"), a.getenv("GITHUB_RUN_ID"); server != "" && run != "" && in.Repository != "" {
		in.RunURL = fmt.Sprintf("%s/%s/actions/runs/%s", strings.TrimRight(server, "/"), in.Repository, run)
	}

	var errs []error
	required := []struct{ name, value string }{
		{"INPUT_GITHUB_TOKEN", in.GitHubToken},
		{"GITHUB_REPOSITORY", in.Repository},
		{"GITHUB_EVENT_PATH", in.EventPath},
	}
	if requirePolicy {
		required = append(required,
			struct{ name, value string }{"INPUT_API_KEY", in.APIKey},
			struct{ name, value string }{"INPUT_POLICY_ENDPOINT", in.PolicyEndpoint})
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingInput, r.name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Inputs{}, err
	}

	a.gha.AddMask(in.GitHubToken)
	if in.APIKey != "" {
		a.gha.AddMask(in.APIKey)
	}
	return in, nil
}

// Sanitize makes value safe for a single-line output: newlines become
// spaces and carriage returns are dropped.
func Sanitize(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "\r", "")
}

// SetOutput sets a single-line step output.
func (a *Action) SetOutput(key, value string) {
	a.gha.SetOutput(key, Sanitize(value))
}

// SetMultilineOutput sets a step output that keeps its line breaks.
func (a *Action) SetMultilineOutput(key, value string) {
	a.gha.SetOutput(key, value)
}

// SetResult sets the status and message outputs.
func (a *Action) SetResult(status, message string) {
	a.SetOutput("status", status)
	a.SetOutput("message", message)
}

// Skip reports a non pull-request event.
func (a *Action) Skip() {
	a.gha.Infof("This action only works on pull request events")
	a.SetResult(StatusSkipped, NotPullRequestMessage)
}

// Fail reports err as an error annotation and as the failed status.
func (a *Action) Fail(err error) {
	a.gha.Errorf("%s", Sanitize(err.Error()))
	a.SetResult(StatusFailed, "Bot execution failed: "+err.Error())
}

// Errorf writes an error annotation.
func (a *Action) Errorf(format string, args ...any) {
	a.gha.Errorf(format, args...)
}

// Warningf writes a warning annotation.
func (a *Action) Warningf(format string, args ...any) {
	a.gha.Warningf(format, args...)
}

// Infof writes a plain log line.
func (a *Action) Infof(format string, args ...any) {
	a.gha.Infof(format, args...)
}

// Group starts a collapsible log group.
func (a *Action) Group(title string) {
	a.gha.Group(title)
}

// EndGroup ends the current log group.
func (a *Action) EndGroup() {
	a.gha.EndGroup()
}

// Summary appends markdown to the job's step summary. It is a no-op
// outside a runner that provides GITHUB_STEP_SUMMARY.
func (a *Action) Summary(markdown string) {
	if a.getenv("GITHUB_STEP_SUMMARY") == "" {
		return
	}
	a.gha.AddStepSummary(markdown)
}
