package gcs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/formula1dl/ingest/pkg/batch/adapter/storage"
	"github.com/formula1dl/ingest/pkg/batch/adapter/storage/gcs"
	coreConfig "github.com/formula1dl/ingest/pkg/batch/core/config"
)

// fakeGCS serves the object list and delete calls of the JSON API for one bucket.
type fakeGCS struct {
	mu      sync.Mutex
	objects map[string]bool
	uploads int
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const listPath = "/b/processed-bucket/o"
	switch {
	case r.Method == http.MethodPost || r.Method == http.MethodPut:
		f.uploads++
		http.Error(w, "uploads are not served", http.StatusServiceUnavailable)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, listPath):
		prefix := r.URL.Query().Get("prefix")
		items := []map[string]string{}
		for _, name := range []string{"races/part-0.parquet", "races/part-1.parquet", "circuits/part-0.parquet"} {
			if f.objects[name] && strings.HasPrefix(name, prefix) {
				items = append(items, map[string]string{"name": name, "bucket": "processed-bucket"})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"kind": "storage#objects", "items": items})
	case r.Method == http.MethodDelete && strings.Contains(r.URL.Path, listPath+"/"):
		name := r.URL.Path[strings.Index(r.URL.Path, listPath+"/")+len(listPath)+1:]
		if !f.objects[name] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"No such object"}}`))
			return
		}
		delete(f.objects, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected request "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

func newConnection(t *testing.T, fake *fakeGCS) storageAdapter.StorageConnection {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := coreConfig.NewConfig()
	cfg.Ingest.Adapter.Storage["processed"] = map[string]interface{}{
		"type":        "gcs",
		"bucket_name": "processed-bucket",
		"endpoint":    server.URL + "/storage/v1/",
	}
	provider := gcs.NewGCSProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })

	conn, err := provider.GetConnection("processed")
	require.NoError(t, err)
	return conn
}

func TestGCSAdapter_ListAndDelete(t *testing.T) {
	fake := &fakeGCS{objects: map[string]bool{
		"races/part-0.parquet":    true,
		"races/part-1.parquet":    true,
		"circuits/part-0.parquet": true,
	}}
	conn := newConnection(t, fake)
	ctx := context.Background()
	assert.Equal(t, "gcs", conn.Type())

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "", "races/", func(objectName string) error {
		names = append(names, objectName)
		return nil
	}))
	assert.Equal(t, []string{"races/part-0.parquet", "races/part-1.parquet"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "", "races/part-0.parquet"))
	require.NoError(t, conn.DeleteObject(ctx, "", "races/part-0.parquet"), "deleting a missing object succeeds")
	assert.False(t, fake.objects["races/part-0.parquet"])
}

// brokenReader returns a few bytes and then fails.
type brokenReader struct{ served bool }

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.served {
		return 0, errors.New("source truncated")
	}
	r.served = true
	return copy(p, "PAR1"), nil
}

func TestGCSAdapter_FailedUploadIsNotFinalized(t *testing.T) {
	fake := &fakeGCS{objects: map[string]bool{}}
	conn := newConnection(t, fake)

	err := conn.Upload(context.Background(), "", "races/data.parquet", &brokenReader{}, "application/octet-stream")
	require.Error(t, err)
	assert.ErrorContains(t, err, "source truncated")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Zero(t, fake.uploads)
	assert.Empty(t, fake.objects)
}

func TestGCSProvider_RequiresBucket(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Ingest.Adapter.Storage["raw"] = map[string]interface{}{"type": "gcs"}

	_, err := gcs.NewGCSProvider(cfg).GetConnection("raw")
	assert.ErrorContains(t, err, "bucket_name must be specified")
}
