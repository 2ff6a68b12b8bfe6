package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","padding":"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}`)
	})

	s := New(Config{Address: "127.0.0.1:0"}, router, zerolog.Nop())
	s.SetupMiddleware(Middlewares{})
	return s
}

func TestSetupMiddleware_CompressesRegularResponses(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
}

func TestSetupMiddleware_SkipsCompressionForWebSocket(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSetupMiddleware_SecondCallIgnored(t *testing.T) {
	s := newTestServer(t)
	s.SetupMiddleware(Middlewares{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ListenServeAndShutdownHooks(t *testing.T) {
	s := newTestServer(t)

	l, err := s.Listen()
	require.NoError(t, err)
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	hooked := make(chan struct{})
	s.OnShutdown(func() { close(hooked) })

	served := make(chan error, 1)
	go func() { served <- s.Start() }()

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	again, err := s.Listen()
	require.NoError(t, err)
	assert.Equal(t, l, again)

	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case <-hooked:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown hook was not called")
	}

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
