package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebtoonFlagsOnlySendsChangedFields(t *testing.T) {
	var f webtoonFlags
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	f.bind(cmd)
	cmd.SetArgs([]string{"--title", "Tower of God", "--tag", "fantasy", "--tag", "action"})
	require.NoError(t, cmd.Execute())

	body := f.body(cmd)
	assert.Equal(t, "Tower of God", body["title"])
	assert.Equal(t, []string{"fantasy", "action"}, body["tags"])
	assert.NotContains(t, body, "status")
	assert.NotContains(t, body, "upload_form")
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	require.Error(t, saveToken(path, ""))
	require.NoError(t, saveToken(path, "abc"))

	got, err := readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, clearToken(path))
	require.NoError(t, clearToken(path))
	_, err = readToken(path)
	assert.Error(t, err)
}

func TestClientKeepsRejectedUploadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"via":      "drop",
			"failures": []map[string]string{{"kind": "not_an_image", "message": "nope"}},
			"state":    map[string]any{"errors": []string{"nope"}},
		})
	}))
	defer srv.Close()

	c, err := newClient(&globalOpts{baseURL: srv.URL + "/", token: "tok"}, true)
	require.NoError(t, err)

	var out uploadResult
	require.NoError(t, c.postForm(context.Background(), "/users/uploads/cover/drop", nil, &out))
	assert.Equal(t, []string{"nope"}, out.State.Errors)

	err = reportUpload(out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_an_image")
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := &apiClient{http: srv.Client(), baseURL: srv.URL}
	err := c.doJSON(context.Background(), http.MethodGet, "/users/webtoons/x", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestWebsocketURL(t *testing.T) {
	u, err := websocketURL("https://example.com/api", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/ws", u)

	u, err = websocketURL("http://localhost:8080", "/ws")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)
}
