package arboreal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "Key abc123"},
		{key: "abc123", wantErr: true},
		{key: "key abc", wantErr: true},
		{key: "Key ", wantErr: true},
		{key: "Key    ", wantErr: true},
		{key: "", wantErr: true},
	}
	for _, tt := range tests {
		err := ValidateAPIKey(tt.key)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAPIKey, "key %q", tt.key)
		} else {
			assert.NoError(t, err, "key %q", tt.key)
		}
	}
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/getFilteredSamples", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Key good" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`[{"sample_id": 2, "name": "b"}, {"sample_id": 1, "name": "a"}]`))
	})
	mux.HandleFunc("/getSampleById", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "1":
			w.Write([]byte(`[{"trees": [{"tree_id": 1, "stems": []}]}]`))
		case "2":
			http.NotFound(w, r)
		case "3":
			http.Error(w, "kaboom", http.StatusInternalServerError)
		case "4":
			w.Write([]byte(`"not records"`))
		default:
			w.Write([]byte(`null`))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSampleList(t *testing.T) {
	srv := newUpstream(t)
	c := New(srv.URL+"/", "Key good")

	recs, err := c.FetchSampleList(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"sample_id", "name"}, recs[0].Keys())
	id, _ := recs[0].Get("sample_id")
	assert.Equal(t, json.Number("2"), id)
}

func TestFetchSampleList_Unauthorized(t *testing.T) {
	srv := newUpstream(t)
	_, err := New(srv.URL, "Key bad").FetchSampleList(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "getFilteredSamples", se.Endpoint)
	assert.Contains(t, se.Error(), "unauthorized")
}

func TestFetchSampleDetail(t *testing.T) {
	srv := newUpstream(t)
	c := New(srv.URL, "Key good")
	ctx := context.Background()

	recs, err := c.FetchSampleDetail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	_, ok := recs[0].Get("trees")
	assert.True(t, ok)

	recs, err = c.FetchSampleDetail(ctx, 2)
	assert.NoError(t, err, "404 is absent, not an error")
	assert.Nil(t, recs)

	_, err = c.FetchSampleDetail(ctx, 3)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)

	_, err = c.FetchSampleDetail(ctx, 4)
	assert.ErrorContains(t, err, "decode sample 4")

	recs, err = c.FetchSampleDetail(ctx, 5)
	assert.NoError(t, err)
	assert.Nil(t, recs)
}

func TestFetch_TransportError(t *testing.T) {
	srv := newUpstream(t)
	c := New(srv.URL, "Key good")
	srv.Close()

	_, err := c.FetchSampleDetail(context.Background(), 1)
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "Key good", WithTimeout(50*time.Millisecond))
	_, err := c.FetchSampleList(context.Background())
	assert.Error(t, err)
}

func TestStatusError_TruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2000), http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "Key good").FetchSampleList(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Len(t, se.Body, maxErrorBody+3)
}
