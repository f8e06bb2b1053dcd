package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadReturnsPublicURL(t *testing.T) {
	var gotPath, gotContentType, gotAuth string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"deliverables/orders/o1/logo.png"}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, APIKey: "svc-key"})
	require.NoError(t, err)

	url, err := c.Upload(context.Background(), "orders/o1/logo.png", []byte("png-bytes"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/deliverables/orders/o1/logo.png", gotPath)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "Bearer svc-key", gotAuth)
	assert.Equal(t, []byte("png-bytes"), gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/deliverables/orders/o1/logo.png", url)
}

func TestUploadSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		w.Write([]byte(`{"message":"payload too large"}`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, APIKey: "svc-key"})
	require.NoError(t, err)

	_, err = c.Upload(context.Background(), "orders/o1/big.zip", make([]byte, 10), "application/zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload too large")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = New(Config{URL: "https://storage.example.test"})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, APIKey: "svc-key", Bucket: "scratch"})
	require.NoError(t, err)

	require.NoError(t, c.Remove(context.Background(), []string{"orders/o1"}))
	assert.Equal(t, http.MethodDelete, gotMethod)
}
