package buckets_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aripsetiawan24/manta-buckets-go/buckets"
	"github.com/aripsetiawan24/manta-buckets-go/bucketstest"
)

func newTestClient(t *testing.T) *buckets.Client {
	t.Helper()
	srv := httptest.NewServer(bucketstest.New().Handler())
	t.Cleanup(srv.Close)

	client, err := buckets.New(buckets.DefaultConfig(srv.URL, "testacct"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueName gives each test its own resource names, the way shared
// test deployments avoid collisions.
func uniqueName(prefix string) string {
	return prefix + "-" + xid.New().String()
}

func TestBucketLifecycle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	name := uniqueName("bucket")

	require.NoError(t, client.CreateBucket(ctx, name))
	require.NoError(t, client.HeadBucket(ctx, name))

	// Creating again conflicts.
	err := client.CreateBucket(ctx, name)
	require.Error(t, err)
	assert.True(t, buckets.IsHTTPStatus(err))
	assert.Equal(t, http.StatusConflict, buckets.StatusCode(err))

	require.NoError(t, client.DeleteBucket(ctx, name))

	err = client.HeadBucket(ctx, name)
	require.Error(t, err)
	assert.True(t, buckets.IsNotFound(err))
}

func TestDeleteBucket_NotEmpty(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	name := uniqueName("bucket")

	require.NoError(t, client.CreateBucket(ctx, name))
	require.NoError(t, client.CreateObject(ctx, name, "o1", strings.NewReader("x"), nil))

	err := client.DeleteBucket(ctx, name)
	require.Error(t, err)
	assert.True(t, buckets.IsHTTPStatus(err))
	assert.Equal(t, http.StatusConflict, buckets.StatusCode(err))
}

// TestConcreteScenario is the end-to-end walk: create bucket b1, upload
// o1 with content "hello" and metadata m-foo=bar, verify the integrity
// headers, delete everything, and observe not-found afterwards.
func TestConcreteScenario(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	const (
		content  = "hello"
		wantMD5  = "XUFAKrxLKna5cZ2REBfFkg=="
		wantSize = int64(5)
	)

	require.NoError(t, client.CreateBucket(ctx, "b1"))
	require.NoError(t, client.CreateObject(ctx, "b1", "o1", strings.NewReader(content), &buckets.PutOptions{
		ContentLength: wantSize,
		ContentType:   "text/plain",
		Metadata:      buckets.Metadata{"foo": "bar"},
	}))

	info, err := client.StatObject(ctx, "b1", "o1")
	require.NoError(t, err)
	assert.Equal(t, wantMD5, info.ContentMD5)
	assert.Equal(t, wantSize, info.ContentLength)
	assert.Equal(t, "bar", info.Metadata["foo"])
	assert.Equal(t, wantMD5, info.Header.Get("Content-Md5"), "integrity headers exposed verbatim")

	require.NoError(t, client.DeleteObject(ctx, "b1", "o1"))
	require.NoError(t, client.DeleteBucket(ctx, "b1"))

	err = client.HeadBucket(ctx, "b1")
	assert.True(t, buckets.IsNotFound(err))
}

func TestObjectRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	payload := bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64 KiB
	sum := md5.Sum(payload)
	wantMD5 := base64.StdEncoding.EncodeToString(sum[:])

	require.NoError(t, client.CreateObject(ctx, bucket, "blob", bytes.NewReader(payload), &buckets.PutOptions{
		ContentLength: int64(len(payload)),
		ContentMD5:    wantMD5,
	}))

	obj, err := client.GetObject(ctx, bucket, "blob")
	require.NoError(t, err)
	defer obj.Close()

	// Headers are available before the body is drained.
	assert.Equal(t, int64(len(payload)), obj.Info().ContentLength)
	assert.Equal(t, wantMD5, obj.Info().ContentMD5)

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, payload, got, "downloaded bytes are identical to the upload")
}

func TestObjectNameWithSlash(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	const name = "nested/path/file.txt"
	require.NoError(t, client.CreateObject(ctx, bucket, name, strings.NewReader("data"), nil))

	info, err := client.StatObject(ctx, bucket, name)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.ContentLength)

	require.NoError(t, client.DeleteObject(ctx, bucket, name))
}

func TestStatObject_Idempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))
	require.NoError(t, client.CreateObject(ctx, bucket, "o1", strings.NewReader("hello"), nil))

	first, err := client.StatObject(ctx, bucket, "o1")
	require.NoError(t, err)
	second, err := client.StatObject(ctx, bucket, "o1")
	require.NoError(t, err)

	assert.Equal(t, first.ContentMD5, second.ContentMD5)
	assert.Equal(t, first.ContentLength, second.ContentLength)
	assert.Equal(t, first.ETag, second.ETag)
	assert.Equal(t, first.Metadata, second.Metadata)
}

func TestMetadataUpdate(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))
	require.NoError(t, client.CreateObject(ctx, bucket, "o1", strings.NewReader("hello"), &buckets.PutOptions{
		Metadata: buckets.Metadata{"foo": "bar"},
	}))

	before, err := client.StatObject(ctx, bucket, "o1")
	require.NoError(t, err)
	require.Equal(t, "bar", before.Metadata["foo"])

	require.NoError(t, client.PutObjectMetadata(ctx, bucket, "o1", buckets.Metadata{"foo": "baz"}))

	after, err := client.StatObject(ctx, bucket, "o1")
	require.NoError(t, err)
	assert.Equal(t, "baz", after.Metadata["foo"], "last write wins")
	assert.Equal(t, before.ContentMD5, after.ContentMD5, "payload integrity untouched")
	assert.Equal(t, before.ContentLength, after.ContentLength)
}

var mtimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)

func TestListObjects_SchemaAndOrder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))
	require.NoError(t, client.CreateObject(ctx, bucket, "only", strings.NewReader("hello"), &buckets.PutOptions{
		ContentType: "text/plain",
	}))

	st, err := client.ListObjects(ctx, bucket, buckets.ListOptions{})
	require.NoError(t, err)
	entries, err := st.Collect()
	require.NoError(t, err)

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "only", e.Name)
	assert.Equal(t, "bucketobject", e.Type)
	assert.Equal(t, int64(5), e.Size)
	assert.Equal(t, "text/plain", e.ContentType)
	assert.Equal(t, "XUFAKrxLKna5cZ2REBfFkg==", e.ContentMD5)
	assert.NotEmpty(t, e.ETag)
	assert.Regexp(t, mtimePattern, e.Mtime.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func TestListObjects_OrderingAndPaging(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	for _, name := range []string{"c", "a", "b", "logs/1", "logs/2"} {
		require.NoError(t, client.CreateObject(ctx, bucket, name, strings.NewReader("x"), nil))
	}

	st, err := client.ListObjects(ctx, bucket, buckets.ListOptions{})
	require.NoError(t, err)
	entries, err := st.Collect()
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a", "b", "c", "logs/1", "logs/2"}, names, "lexicographic, as received")

	st, err = client.ListObjects(ctx, bucket, buckets.ListOptions{Prefix: "logs/"})
	require.NoError(t, err)
	entries, err = st.Collect()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	st, err = client.ListObjects(ctx, bucket, buckets.ListOptions{Marker: "b", Limit: 2})
	require.NoError(t, err)
	entries, err = st.Collect()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].Name)
	assert.Equal(t, "logs/1", entries[1].Name)
}

func TestListObjects_EmptyBucket(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	st, err := client.ListObjects(ctx, bucket, buckets.ListOptions{})
	require.NoError(t, err)
	entries, err := st.Collect()
	require.NoError(t, err, "empty listing is a clean end of stream")
	assert.Empty(t, entries)
}

func TestListBuckets(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.CreateBucket(ctx, "zz"))
	require.NoError(t, client.CreateBucket(ctx, "aa"))

	st, err := client.ListBuckets(ctx, buckets.ListOptions{})
	require.NoError(t, err)
	entries, err := st.Collect()
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "aa", entries[0].Name)
	assert.Equal(t, "bucket", entries[0].Type)
	assert.False(t, entries[0].Mtime.IsZero())
	assert.Equal(t, "zz", entries[1].Name)
}

func TestNotFoundErrors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	_, err := client.GetObject(ctx, bucket, "missing")
	assert.True(t, buckets.IsNotFound(err))

	_, err = client.StatObject(ctx, bucket, "missing")
	assert.True(t, buckets.IsNotFound(err))

	err = client.DeleteObject(ctx, bucket, "missing")
	assert.True(t, buckets.IsNotFound(err))

	err = client.DeleteBucket(ctx, "no-such-bucket")
	assert.True(t, buckets.IsNotFound(err))

	_, err = client.ListObjects(ctx, "no-such-bucket", buckets.ListOptions{})
	assert.True(t, buckets.IsNotFound(err))
}

// failingReader fails partway through, simulating a local payload
// source dying mid-upload.
type failingReader struct {
	fed bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.fed {
		f.fed = true
		return copy(p, []byte("partial")), nil
	}
	return 0, errors.New("disk read failed")
}

func TestCreateObject_PayloadStreamError(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	err := client.CreateObject(ctx, bucket, "o1", &failingReader{}, nil)
	require.Error(t, err)
	assert.True(t, buckets.IsPayloadStream(err), "got %v", err)

	// The aborted upload must not have materialized the object.
	_, err = client.StatObject(ctx, bucket, "o1")
	assert.True(t, buckets.IsNotFound(err))
}

func TestIsSupported(t *testing.T) {
	client := newTestClient(t)
	ok, err := client.IsSupported(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsSupported_Probe(t *testing.T) {
	tests := []struct {
		status  int
		want    bool
		wantErr bool
	}{
		{status: http.StatusNoContent, want: true},
		{status: http.StatusNotFound, want: false},
		{status: http.StatusMethodNotAllowed, want: false},
		{status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client, err := buckets.New(buckets.DefaultConfig(srv.URL, "testacct"))
			require.NoError(t, err)
			defer client.Close()

			ok, err := client.IsSupported(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, buckets.IsHTTPStatus(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClientClosed(t *testing.T) {
	// Point at a dead address: a closed client must fail fast without
	// touching the network at all.
	client, err := buckets.New(buckets.DefaultConfig("http://127.0.0.1:1", "testacct"))
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close(), "close is idempotent")

	ctx := context.Background()
	assert.True(t, buckets.IsClientClosed(client.CreateBucket(ctx, "b")))
	assert.True(t, buckets.IsClientClosed(client.HeadBucket(ctx, "b")))

	_, err = client.ListBuckets(ctx, buckets.ListOptions{})
	assert.True(t, buckets.IsClientClosed(err))

	_, err = client.GetObject(ctx, "b", "o")
	assert.True(t, buckets.IsClientClosed(err))
}

func TestConcurrentCalls(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	bucket := uniqueName("bucket")
	require.NoError(t, client.CreateBucket(ctx, bucket))

	const n = 8
	errc := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			name := fmt.Sprintf("obj-%d", i)
			if err := client.CreateObject(ctx, bucket, name, strings.NewReader("hello"), nil); err != nil {
				errc <- err
				return
			}
			_, err := client.StatObject(ctx, bucket, name)
			errc <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errc)
	}

	st, err := client.ListObjects(ctx, bucket, buckets.ListOptions{})
	require.NoError(t, err)
	entries, err := st.Collect()
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

// TestEveryOpIsExercised is the completeness check over the closed Op
// set: every public operation must have an invocation here, so adding
// an Op without extending the map fails the test.
func TestEveryOpIsExercised(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.CreateBucket(ctx, "opcheck"))
	require.NoError(t, client.CreateObject(ctx, "opcheck", "o1", strings.NewReader("x"), nil))

	calls := map[buckets.Op]func() error{
		buckets.OpCreateBucket: func() error { return client.CreateBucket(ctx, "opcheck2") },
		buckets.OpHeadBucket:   func() error { return client.HeadBucket(ctx, "opcheck") },
		buckets.OpDeleteBucket: func() error { return client.DeleteBucket(ctx, "opcheck2") },
		buckets.OpListBuckets: func() error {
			st, err := client.ListBuckets(ctx, buckets.ListOptions{})
			if err != nil {
				return err
			}
			_, err = st.Collect()
			return err
		},
		buckets.OpCreateObject: func() error {
			return client.CreateObject(ctx, "opcheck", "o2", strings.NewReader("y"), nil)
		},
		buckets.OpGetObject: func() error {
			obj, err := client.GetObject(ctx, "opcheck", "o1")
			if err != nil {
				return err
			}
			defer obj.Close()
			_, err = io.ReadAll(obj)
			return err
		},
		buckets.OpStatObject: func() error {
			_, err := client.StatObject(ctx, "opcheck", "o1")
			return err
		},
		buckets.OpPutObjectMetadata: func() error {
			return client.PutObjectMetadata(ctx, "opcheck", "o1", buckets.Metadata{"k": "v"})
		},
		buckets.OpDeleteObject: func() error { return client.DeleteObject(ctx, "opcheck", "o2") },
		buckets.OpListObjects: func() error {
			st, err := client.ListObjects(ctx, "opcheck", buckets.ListOptions{})
			if err != nil {
				return err
			}
			_, err = st.Collect()
			return err
		},
		buckets.OpIsSupported: func() error {
			_, err := client.IsSupported(ctx)
			return err
		},
	}

	for _, op := range buckets.AllOps() {
		call, ok := calls[op]
		require.True(t, ok, "operation %s has no invocation in this test", op)
		assert.NoError(t, call(), "operation %s", op)
	}
}
