package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
	"berth/internal/notify"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /services", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]api.ServiceInfo{
			{ServiceDescriptor: api.ServiceDescriptor{Name: "billing", SID: "aa11"}, Status: api.StatusRunning},
		})
	})
	mux.HandleFunc("POST /services/{sid}/start", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("sid") == "busy" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "busy is already starting"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("PUT /bundles/{name}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if string(data) != "PK" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"operationId": r.PathValue("name")})
	})
	upgrader := websocket.Upgrader{}
	mux.HandleFunc("GET /ws/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(notify.Message{Kind: notify.KindNotice, Level: api.NoticeInfo, Text: "hello"})
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	c, err := New(newTestServer(t).URL)
	require.NoError(t, err)

	svc, err := c.Resolve(context.Background(), "billing")
	require.NoError(t, err)
	assert.Equal(t, "aa11", svc.SID)

	svc, err = c.Resolve(context.Background(), "aa11")
	require.NoError(t, err)
	assert.Equal(t, "billing", svc.Name)

	_, err = c.Resolve(context.Background(), "nope")
	assert.True(t, api.IsNotFound(err))
}

func TestStart(t *testing.T) {
	c, err := New(newTestServer(t).URL)
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background(), "aa11"))

	err = c.Start(context.Background(), "busy")
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "already starting")
}

func TestImport(t *testing.T) {
	c, err := New(newTestServer(t).URL)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "svc.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))

	id, err := c.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "svc.zip", id)
}

func TestWatch(t *testing.T) {
	c, err := New(newTestServer(t).URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []notify.Message
	require.NoError(t, c.Watch(ctx, func(m notify.Message) { got = append(got, m) }))
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
}
