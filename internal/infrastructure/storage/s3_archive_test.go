package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/infrastructure/config"
)

// fakeS3 is a path-style object store good enough for PutObject, GetObject,
// HeadBucket and CreateBucket
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
		}
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[p] = body
		f.types[p] = r.Header.Get("Content-Type")
	case r.Method == http.MethodGet:
		data, ok := f.objects[p]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) snapshot() (map[string][]byte, map[string]string, map[string]bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	objects := make(map[string][]byte, len(f.objects))
	for k, v := range f.objects {
		objects[k] = v
	}
	types := make(map[string]string, len(f.types))
	for k, v := range f.types {
		types[k] = v
	}
	buckets := make(map[string]bool, len(f.buckets))
	for k, v := range f.buckets {
		buckets[k] = v
	}
	return objects, types, buckets
}

func newTestArchive(t *testing.T, fake *fakeS3) *S3RawPayloadArchive {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	a, err := NewS3RawPayloadArchive(context.Background(), &config.StorageConfig{
		Endpoint:     srv.URL,
		Bucket:       "raw",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
		Prefix:       "/raw-orders/",
	})
	require.NoError(t, err)
	return a
}

func TestS3RawPayloadArchive_ArchiveAndGet(t *testing.T) {
	fake := newFakeS3("raw")
	a := newTestArchive(t, fake)
	accountID := uuid.MustParse("7d0b5a3e-3c1f-4b8a-9a51-0f6f0d1e2c3b")
	ctx := context.Background()

	require.NoError(t, a.Archive(ctx, accountID, "2000001", []byte(`{"id":2000001}`)))
	require.NoError(t, a.Archive(ctx, accountID, "2000001", []byte(`{"id":2000001,"status":"paid"}`)))

	key := "raw/raw-orders/7d0b5a3e-3c1f-4b8a-9a51-0f6f0d1e2c3b/2000001.json"
	objects, contentTypes, _ := fake.snapshot()
	require.Contains(t, objects, key)
	assert.Len(t, objects, 1)
	assert.Equal(t, "application/json", contentTypes[key])

	got, err := a.Get(ctx, accountID, "2000001")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2000001,"status":"paid"}`, string(got))

	_, err = a.Get(ctx, accountID, "404")
	assert.ErrorIs(t, err, ErrArchiveNotFound)
}

func TestS3RawPayloadArchive_EmptyPayload(t *testing.T) {
	fake := newFakeS3("raw")
	a := newTestArchive(t, fake)
	accountID := uuid.New()

	require.NoError(t, a.Archive(context.Background(), accountID, "1", nil))
	got, err := a.Get(context.Background(), accountID, "1")
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
}

func TestS3RawPayloadArchive_ObjectKey(t *testing.T) {
	a := &S3RawPayloadArchive{prefix: "raw-orders"}
	accountID := uuid.New()

	tests := []struct {
		name      string
		accountID uuid.UUID
		orderID   string
		want      string
		wantErr   bool
	}{
		{"plain", accountID, "2000001", "raw-orders/" + accountID.String() + "/2000001.json", false},
		{"trims spaces", accountID, " 2000001 ", "raw-orders/" + accountID.String() + "/2000001.json", false},
		{"nil account", uuid.Nil, "1", "", true},
		{"blank order", accountID, "  ", "", true},
		{"path traversal", accountID, "../1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := a.ObjectKey(tt.accountID, tt.orderID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrArchiveKeyInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestS3RawPayloadArchive_EnsureBucket(t *testing.T) {
	fake := newFakeS3()
	a := newTestArchive(t, fake)

	require.NoError(t, a.EnsureBucket(context.Background()))
	_, _, buckets := fake.snapshot()
	assert.True(t, buckets["raw"])
	require.NoError(t, a.EnsureBucket(context.Background()))
}

func TestNewS3RawPayloadArchive_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3RawPayloadArchive(ctx, nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3RawPayloadArchive(ctx, &config.StorageConfig{})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3RawPayloadArchive(ctx, &config.StorageConfig{Bucket: "raw", AccessKey: "key"})
	assert.ErrorContains(t, err, "must be set together")
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "", normalizeEndpoint("", true))
	assert.Equal(t, "https://minio:9000", normalizeEndpoint("minio:9000", true))
	assert.Equal(t, "http://minio:9000", normalizeEndpoint("minio:9000", false))
	assert.Equal(t, "http://localhost:9000", normalizeEndpoint("http://localhost:9000", true))
}
