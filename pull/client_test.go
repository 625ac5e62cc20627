package pull

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRef = Ref{Owner: "octo", Repo: "app", Number: 7, HeadSHA: "headsha"}

func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.Client(), "gh-token", srv.URL)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestReadEvent(t *testing.T) {
	dir := t.TempDir()

	prPath := filepath.Join(dir, "pr.json")
	require.NoError(t, os.WriteFile(prPath, []byte(`{
		"action": "opened",
		"number": 7,
		"pull_request": {"number": 7, "title": "Add feature", "head": {"sha": "abc123"}}
	}`), 0o600))

	ev, err := ReadEvent(prPath)
	require.NoError(t, err)

	ref, err := RefFromEvent("octo/app", ev)
	require.NoError(t, err)
	assert.Equal(t, Ref{Owner: "octo", Repo: "app", Number: 7, Title: "Add feature", HeadSHA: "abc123"}, ref)
	assert.Equal(t, "octo/app#7", ref.String())

	pushPath := filepath.Join(dir, "push.json")
	require.NoError(t, os.WriteFile(pushPath, []byte(`{"ref": "refs/heads/main"}`), 0o600))
	ev, err = ReadEvent(pushPath)
	require.NoError(t, err)
	_, err = RefFromEvent("octo/app", ev)
	assert.ErrorIs(t, err, ErrNotPullRequest)

	_, err = ReadEvent(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSplitRepository(t *testing.T) {
	owner, repo, err := SplitRepository("octo/app")
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "app", repo)

	for _, bad := range []string{"", "octo", "/app", "octo/", "a/b/c"} {
		_, _, err := SplitRepository(bad)
		assert.Error(t, err, bad)
	}
}

func TestClient_Files_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/repos/octo/app/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		if r.URL.Query().Get("page") == "2" {
			writeJSON(t, w, []map[string]any{
				{"filename": "b.go", "status": "removed", "deletions": 4, "changes": 4},
			})
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/octo/app/pulls/7/files?page=2>; rel="next"`, srvURL))
		writeJSON(t, w, []map[string]any{
			{"filename": "a.go", "status": "modified", "additions": 2, "deletions": 1, "changes": 3, "patch": "@@ -1 +1,2 @@\n a\n+b"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewClient(srv.Client(), "gh-token", srv.URL)
	require.NoError(t, err)

	files, err := c.Files(context.Background(), testRef)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, File{Path: "a.go", Status: "modified", Additions: 2, Deletions: 1, Changes: 3, Patch: "@@ -1 +1,2 @@\n a\n+b"}, files[0])
	assert.True(t, files[1].Removed())
}

func TestClient_Commits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/app/pulls/7/commits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"sha": "111", "commit": map[string]any{"message": "first"}},
			{"sha": "222", "commit": map[string]any{"message": "second"}},
		})
	})
	c := newTestServer(t, mux)

	commits, err := c.Commits(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, []Commit{{SHA: "111", Message: "first"}, {SHA: "222", Message: "second"}}, commits)
}

func TestClient_Content(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/app/contents/dir/a.go", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "headsha", r.URL.Query().Get("ref"))
		writeJSON(t, w, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"path":     "dir/a.go",
			"content":  base64.StdEncoding.EncodeToString([]byte("package dir\n")),
		})
	})
	c := newTestServer(t, mux)

	content, err := c.Content(context.Background(), testRef, "dir/a.go", "headsha")
	require.NoError(t, err)
	assert.Equal(t, "package dir\n", content)
}

func TestClient_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	c := newTestServer(t, mux)

	_, err := c.Files(context.Background(), testRef)
	assert.ErrorContains(t, err, "list files for octo/app#7")
	_, err = c.Commits(context.Background(), testRef)
	assert.Error(t, err)
	_, err = c.Content(context.Background(), testRef, "x", "y")
	assert.Error(t, err)
}

func TestClient_Stats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/app/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"filename": "a.go", "additions": 10, "deletions": 2, "changes": 12},
			{"filename": "b.go", "additions": 1, "deletions": 5, "changes": 6},
		})
	})
	mux.HandleFunc("/repos/octo/app/pulls/7/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}})
	})
	c := newTestServer(t, mux)

	s, err := c.Stats(context.Background(), testRef)
	require.NoError(t, err)
	assert.Len(t, s.Files, 2)
	assert.Equal(t, 11, s.Additions)
	assert.Equal(t, 7, s.Deletions)
	assert.Equal(t, 18, s.LineChanges())
	assert.Equal(t, 3, s.Comments)
}

func TestClient_UpsertComment(t *testing.T) {
	const marker = "<!-- bot -->"

	t.Run("creates when absent", func(t *testing.T) {
		var created string
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/octo/app/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				writeJSON(t, w, []map[string]any{{"id": 1, "body": "human comment"}})
			case http.MethodPost:
				body, _ := io.ReadAll(r.Body)
				var cm map[string]string
				require.NoError(t, json.Unmarshal(body, &cm))
				created = cm["body"]
				w.WriteHeader(http.StatusCreated)
				writeJSON(t, w, map[string]any{"id": 42})
			}
		})
		c := newTestServer(t, mux)

		id, err := c.UpsertComment(context.Background(), testRef, marker, marker+"\nreport")
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.Equal(t, marker+"\nreport", created)
	})

	t.Run("edits when present", func(t *testing.T) {
		var edited bool
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/octo/app/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			writeJSON(t, w, []map[string]any{
				{"id": 1, "body": "human"},
				{"id": 9, "body": marker + "\nold report"},
			})
		})
		mux.HandleFunc("/repos/octo/app/issues/comments/9", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			edited = true
			writeJSON(t, w, map[string]any{"id": 9})
		})
		c := newTestServer(t, mux)

		id, err := c.UpsertComment(context.Background(), testRef, marker, marker+"\nnew report")
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
		assert.True(t, edited)
	})
}

func TestClient_DeleteComment(t *testing.T) {
	const marker = "<!-- bot -->"

	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/app/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"id": 5, "body": marker}})
	})
	mux.HandleFunc("/repos/octo/app/issues/comments/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestServer(t, mux)

	ok, err := c.DeleteComment(context.Background(), testRef, marker)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, deleted)
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	c, err := NewClient(nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", c.gh.BaseURL.String())

	c, err = NewClient(nil, "", "https://ghe.example.com/api/v3")
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", c.gh.BaseURL.String())
}
