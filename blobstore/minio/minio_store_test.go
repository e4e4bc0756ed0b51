package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockpack/blobstore"
)

// fakeS3 speaks just enough of the S3 HTTP protocol for the store under
// test: HEAD, ranged GET, PUT, DELETE, ListObjectsV2 and multipart upload
// against a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	parts   map[string]map[int][]byte
	uploads map[string]string
	nextID  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		parts:   make(map[string]map[int][]byte),
		uploads: make(map[string]string),
	}
}

func (f *fakeS3) seed(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	q := r.URL.Query()

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := fmt.Sprintf("upload-%d", f.nextID)
		f.uploads[id] = key
		f.parts[id] = make(map[int][]byte)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, "<InitiateMultipartUploadResult><Bucket>test-bucket</Bucket><Key>%s</Key><UploadId>%s</UploadId></InitiateMultipartUploadResult>", key, id)

	case r.Method == http.MethodPut && q.Get("uploadId") != "":
		num, _ := strconv.Atoi(q.Get("partNumber"))
		f.parts[q.Get("uploadId")][num] = readBody(r)
		w.Header().Set("ETag", fmt.Sprintf("%q", fmt.Sprintf("part-%d", num)))

	case r.Method == http.MethodPost && q.Get("uploadId") != "":
		id := q.Get("uploadId")
		var data []byte
		for _, n := range slices.Sorted(maps.Keys(f.parts[id])) {
			data = append(data, f.parts[id][n]...)
		}
		f.objects[f.uploads[id]] = data
		delete(f.parts, id)
		delete(f.uploads, id)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, "<CompleteMultipartUploadResult><Bucket>test-bucket</Bucket><Key>%s</Key><ETag>%q</ETag></CompleteMultipartUploadResult>", key, "done")

	case r.Method == http.MethodGet && key == "":
		f.list(w, q.Get("prefix"))

	case r.Method == http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.objectHeaders(w, len(data))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, "<Error><Code>NoSuchKey</Code><Message>no such key</Message><Key>%s</Key></Error>", key)
			return
		}
		if rng := r.Header.Get("Range"); rng != "" {
			var start, end int64
			fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
			if end >= int64(len(data)) {
				end = int64(len(data)) - 1
			}
			f.objectHeaders(w, int(end-start+1))
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[start : end+1])
			return
		}
		f.objectHeaders(w, len(data))
		_, _ = w.Write(data)

	case r.Method == http.MethodPut:
		f.objects[key] = readBody(r)
		w.Header().Set("ETag", `"put"`)

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

// readBody returns the request payload. Uploads signed with the V4
// streaming scheme arrive aws-chunked ("<hex-size>[;chunk-signature=...]
// \r\n<data>\r\n" frames ending with a zero-size chunk); those are
// unwrapped to the raw payload, as a real S3 server would.
func readBody(r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING") {
		return body
	}

	var payload []byte
	rest := body
	for {
		i := bytes.Index(rest, []byte("\r\n"))
		if i < 0 {
			break
		}
		sizeHex, _, _ := strings.Cut(string(rest[:i]), ";")
		n, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil || n <= 0 {
			break
		}
		rest = rest[i+2:]
		if int64(len(rest)) < n {
			break
		}
		payload = append(payload, rest[:n]...)
		rest = rest[n+2:]
	}
	return payload
}

func (f *fakeS3) objectHeaders(w http.ResponseWriter, length int) {
	w.Header().Set("Content-Length", strconv.Itoa(length))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("ETag", `"obj"`)
	w.Header().Set("Last-Modified", time.Unix(0, 0).UTC().Format(http.TimeFormat))
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("<ListBucketResult><Name>test-bucket</Name><IsTruncated>false</IsTruncated>")
	for _, k := range keys {
		fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size><ETag>%q</ETag><LastModified>1970-01-01T00:00:00.000Z</LastModified></Contents>", k, len(f.objects[k]), "obj")
	}
	sb.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, sb.String())
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()

	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("test-access", "test-secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)

	return NewStore(client, "test-bucket", "artifacts"), fake
}

func TestStoreOpenMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Open(context.Background(), "blocks/nope.bpk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStorePutOpen(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	data := []byte("block artifact payload")

	require.NoError(t, store.Put(ctx, "blocks/p0.bpk", data))

	stored, ok := fake.object("artifacts/blocks/p0.bpk")
	require.True(t, ok, "objects live under the store's root prefix")
	assert.Equal(t, data, stored)

	blob, err := store.Open(ctx, "blocks/p0.bpk")
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, int64(len(data)), blob.Size())

	got := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, got, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, got)
}

func TestBlobReadAt(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	fake.seed("artifacts/blocks/p0.bpk", []byte("0123456789"))

	blob, err := store.Open(ctx, "blocks/p0.bpk")
	require.NoError(t, err)
	defer blob.Close()

	t.Run("interior", func(t *testing.T) {
		p := make([]byte, 4)
		n, err := blob.ReadAt(ctx, p, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, "3456", string(p))
	})

	t.Run("short read at tail", func(t *testing.T) {
		p := make([]byte, 4)
		n, err := blob.ReadAt(ctx, p, 8)
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "89", string(p[:n]))
	})

	t.Run("at end", func(t *testing.T) {
		p := make([]byte, 4)
		n, err := blob.ReadAt(ctx, p, blob.Size())
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("past end", func(t *testing.T) {
		p := make([]byte, 4)
		n, err := blob.ReadAt(ctx, p, 300)
		assert.Equal(t, 0, n)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("empty buffer", func(t *testing.T) {
		n, err := blob.ReadAt(ctx, nil, 0)
		assert.Equal(t, 0, n)
		assert.NoError(t, err)
	})
}

func TestBlobReadRange(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	fake.seed("artifacts/blocks/p0.bpk", []byte("0123456789"))

	blob, err := store.Open(ctx, "blocks/p0.bpk")
	require.NoError(t, err)
	defer blob.Close()

	readRange := func(t *testing.T, off, length int64) string {
		t.Helper()
		rc, err := blob.ReadRange(ctx, off, length)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(got)
	}

	t.Run("interior", func(t *testing.T) {
		assert.Equal(t, "23456", readRange(t, 2, 5))
	})

	t.Run("clamped to tail", func(t *testing.T) {
		assert.Equal(t, "89", readRange(t, 8, 100))
	})

	t.Run("past end", func(t *testing.T) {
		assert.Empty(t, readRange(t, 10, 4))
	})

	t.Run("zero length", func(t *testing.T) {
		assert.Empty(t, readRange(t, 0, 0))
	})

	t.Run("whole object", func(t *testing.T) {
		assert.Equal(t, "0123456789", readRange(t, 0, blob.Size()))
	})
}

func TestStoreCreate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	w, err := store.Create(ctx, "blocks/p1.bpk")
	require.NoError(t, err)

	_, err = w.Write([]byte("first "))
	require.NoError(t, err)
	_, err = w.Write([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	_, err = store.Open(ctx, "blocks/p1.bpk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound, "not visible before Close")

	require.NoError(t, w.Close())
	assert.Error(t, w.Close(), "double close")

	blob, err := store.Open(ctx, "blocks/p1.bpk")
	require.NoError(t, err)
	defer blob.Close()

	got := make([]byte, blob.Size())
	_, err = blob.ReadAt(ctx, got, 0)
	require.NoError(t, err)
	assert.Equal(t, "first second", string(got))
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "blocks/p0.bpk", []byte("x")))
	require.NoError(t, store.Delete(ctx, "blocks/p0.bpk"))

	_, err := store.Open(ctx, "blocks/p0.bpk")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "blocks/p0.bpk"), "deleting a missing artifact")
}

func TestStoreList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "blocks/b.bpk", []byte("b")))
	require.NoError(t, store.Put(ctx, "blocks/a.bpk", []byte("a")))
	require.NoError(t, store.Put(ctx, "MANIFEST-000001", []byte("m")))

	names, err := store.List(ctx, "blocks")
	require.NoError(t, err)
	assert.Equal(t, []string{"blocks/a.bpk", "blocks/b.bpk"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"MANIFEST-000001", "blocks/a.bpk", "blocks/b.bpk"}, all)
}
