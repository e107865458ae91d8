package texture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherFetchesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/gfx/tiles/grass", r.URL.Path)
		w.Write([]byte("raw-texture-bytes"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL)
	data, err := f.Fetch(context.Background(), "gfx/tiles/grass")
	require.NoError(t, err)
	require.Equal(t, "raw-texture-bytes", string(data))
}

func TestHTTPFetcherReturnsErrorOnNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "gfx/tiles/ghost")
	require.Error(t, err)
}

func TestHTTPFetcherReturnsErrorOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL)
	_, err := f.Fetch(context.Background(), "gfx/tiles/grass")
	require.Error(t, err)
}
