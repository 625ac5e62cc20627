// Package report renders check results as pull-request comments and
// workflow summaries.
//
// Comments start with Marker, a hidden HTML comment the bot uses to find
// and update its own comment on later runs:
//
//	body, err := report.Render(result, report.Options{RunURL: url})
//	if err != nil {
//		return err
//	}
//	_, err = client.UpsertComment(ctx, ref, report.Marker, body)
//
// # Template functions
//
//   - truncate(s string, maxLen int) string - Cut to maxLen runes with ellipsis
//   - oneLine(s string) string - Collapse whitespace runs to single spaces
//   - plural(n int, one, many string) string - Pick the word form for n
//   - lines(s string, n int) string - Keep the first n lines
//   - fence(s string) string - A backtick fence longer than any run in s
//   - join(slice []string, sep string) string - Join strings with separator
//   - indent(s string, spaces int) string - Add spaces to each line
//   - default(val, defaultVal any) any - Return default if val is nil/empty
//   - json(v any) string - Convert value to pretty-printed JSON
package report
