package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RemoveBackground(t *testing.T) {
	processed := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/remove-bg", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cat.png", header.Filename)

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(processed)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	got, err := c.RemoveBackground(context.Background(), "cat.png", []byte("input-bytes"))
	require.NoError(t, err)
	assert.Equal(t, processed, got)
}

func TestClient_RemoveBackground_RemoteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	_, err := c.RemoveBackground(context.Background(), "cat.png", []byte("input"))
	require.Error(t, err)

	var remoteErr *RemoteProcessingError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusInternalServerError, remoteErr.Status)
	assert.Equal(t, "model overloaded", remoteErr.Message)
}

func TestClient_RemoveBackground_UnparseableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>nope</html>"))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	_, err := c.RemoveBackground(context.Background(), "cat.png", []byte("input"))

	var remoteErr *RemoteProcessingError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), remoteErr.Message)
}

func TestClient_RemoveBackground_Unreachable(t *testing.T) {
	// A closed server gives a connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(server.URL, nil)
	_, err := c.RemoveBackground(context.Background(), "cat.png", []byte("input"))
	require.Error(t, err)

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestClient_ReplaceBackground(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/replace-bg", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "sunset beach", r.FormValue("prompt"))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		_, _ = w.Write([]byte("composited"))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	got, err := c.ReplaceBackground(context.Background(), "dog.png", []byte("input"), "sunset beach")
	require.NoError(t, err)
	assert.Equal(t, []byte("composited"), got)
}

func TestClient_RewritePrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rewrite-prompt", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "beach", r.FormValue("prompt"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rewritten_prompt":"a serene tropical beach at golden hour"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	got, err := c.RewritePrompt(context.Background(), "beach")
	require.NoError(t, err)
	assert.Equal(t, "a serene tropical beach at golden hour", got)
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://example.test/", nil)
	assert.Equal(t, "http://example.test", c.baseURL)
}
