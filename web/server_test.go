package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnb666/tripletnet/triplet"
)

func TestStats(t *testing.T) {
	s := NewServer(t.TempDir())
	s.Update(triplet.Summary{Epoch: 1, Phase: "valid", Loss: 0.5})
	s.Update(triplet.Summary{Epoch: 2, Phase: "valid", Loss: 0.25})
	srv := httptest.NewServer(s.Handler("", ""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var history []triplet.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[1].Epoch)
	assert.InDelta(t, 0.25, history[1].Loss, 1e-12)
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roc_curve_test.png"), []byte("png data"), 0644))
	s := NewServer(dir)
	srv := httptest.NewServer(s.Handler("", ""))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/plots/roc_curve_test.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	for _, name := range []string{"Bad.png", "roc.txt", "no-dash.png"} {
		resp, err := http.Get(srv.URL + "/plots/" + name)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
	}
}

func TestBasicAuth(t *testing.T) {
	s := NewServer(t.TempDir())
	srv := httptest.NewServer(s.Handler("admin", "secret"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest("GET", srv.URL+"/stats", nil)
	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketPush(t *testing.T) {
	s := NewServer(t.TempDir())
	srv := httptest.NewServer(s.Handler("", ""))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns) == 1
	}, time.Second, 5*time.Millisecond)

	s.Update(triplet.Summary{Epoch: 7, Phase: "valid", AUC: 0.9})
	var sum triplet.Summary
	require.NoError(t, conn.ReadJSON(&sum))
	assert.Equal(t, 7, sum.Epoch)
	assert.InDelta(t, 0.9, sum.AUC, 1e-12)
	assert.Len(t, s.History(), 1)
}
