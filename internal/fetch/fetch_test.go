package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLastModified = "Wed, 21 Oct 2025 07:28:00 GMT"

func TestHTTPFetcherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Last-Modified", testLastModified)
		_, _ = w.Write([]byte(`{"format":"graph-model"}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())
	res, err := f.Fetch(context.Background(), srv.URL+"/model.json")
	require.NoError(t, err)

	assert.JSONEq(t, `{"format":"graph-model"}`, string(res.Body))
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, testLastModified, res.LastModified)
}

func TestHTTPFetcherFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcherCheck(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantFresh bool
		wantErr   bool
	}{
		{name: "not modified", status: http.StatusNotModified, wantFresh: true},
		{name: "changed", status: http.StatusOK, wantFresh: false},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCondition string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				gotCondition = r.Header.Get("If-Modified-Since")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := NewHTTPFetcher(srv.Client())
			fresh, err := f.Check(context.Background(), srv.URL+"/model.json", testLastModified)

			assert.Equal(t, testLastModified, gotCondition)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFresh, fresh)
		})
	}
}

func TestDispatcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := NewDispatcher(map[string]Fetcher{
		"http":  NewHTTPFetcher(srv.Client()),
		"https": NewHTTPFetcher(srv.Client()),
	})

	t.Run("RoutesByScheme", func(t *testing.T) {
		res, err := d.Fetch(context.Background(), srv.URL+"/x")
		require.NoError(t, err)
		assert.Equal(t, "ok", string(res.Body))
	})

	t.Run("UnknownScheme", func(t *testing.T) {
		_, err := d.Fetch(context.Background(), "ftp://host/model.json")
		assert.ErrorIs(t, err, ErrUnknownScheme)

		_, err = d.Check(context.Background(), "gopher://host/model.json", "")
		assert.ErrorIs(t, err, ErrUnknownScheme)
	})
}

func TestSplitS3URL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{name: "simple", url: "s3://models/mobilenet/model.json", wantBucket: "models", wantKey: "mobilenet/model.json"},
		{name: "missing key", url: "s3://models", wantErr: true},
		{name: "missing bucket", url: "s3:///model.json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := splitS3URL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}
