package buckets

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/aripsetiawan24/manta-buckets-go/internal/metrics"
)

// Object is a streaming handle to a downloaded object. Headers are
// available through Info before the payload has been read, so a caller
// can validate content-md5 and content-length up front. The caller MUST
// Close the object after reading; closing before the payload is drained
// aborts the in-flight response.
type Object struct {
	info *ObjectInfo
	body io.ReadCloser
}

// Info returns the object's parsed response headers.
func (o *Object) Info() *ObjectInfo {
	return o.info
}

// Read delivers exactly the bytes the server sent, in order. A response
// cut short of the advertised content-length surfaces as a transport
// error, never as silent truncation.
func (o *Object) Read(p []byte) (int, error) {
	return o.body.Read(p)
}

// Close releases the underlying response. Close is an explicit abort
// when the payload has not been fully read.
func (o *Object) Close() error {
	return o.body.Close()
}

// CreateObject uploads payload as the named object, attaching metadata
// from opts as m-* headers. The payload is streamed straight into the
// request body; the client computes no digest of its own, so upload
// success is purely a transport-level acknowledgment. If the payload
// source fails mid-transfer the request is aborted and a
// payload-stream error returned.
func (c *Client) CreateObject(ctx context.Context, bucket, object string, payload io.Reader, opts *PutOptions) error {
	path, err := c.objectPath(OpCreateObject, bucket, object)
	if err != nil {
		return err
	}
	if opts == nil {
		opts = &PutOptions{}
	}
	if err := opts.Metadata.validate(OpCreateObject); err != nil {
		return err
	}

	hdr := EncodeMetadata(opts.Metadata)
	if opts.ContentType != "" {
		hdr.Set("Content-Type", opts.ContentType)
	}
	if opts.ContentMD5 != "" {
		hdr.Set("Content-Md5", opts.ContentMD5)
	}

	if payload == nil {
		return newError(ErrKindInvalidArgument, OpCreateObject, "payload must not be nil")
	}
	counted := &countingReader{r: payload}

	resp, err := c.do(ctx, OpCreateObject, http.MethodPut, path, nil, hdr, counted, opts.ContentLength)
	metrics.AddTransferBytes("upload", counted.n)
	if err != nil {
		return err
	}
	return c.finish(OpCreateObject, resp)
}

// GetObject downloads the named object. The returned Object carries the
// response headers immediately and a lazily-consumed payload stream.
func (c *Client) GetObject(ctx context.Context, bucket, object string) (*Object, error) {
	path, err := c.objectPath(OpGetObject, bucket, object)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpGetObject, http.MethodGet, path, nil, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(OpGetObject, resp); err != nil {
		return nil, err
	}

	info := parseObjectInfo(resp.Header)
	if info.ContentLength < 0 && resp.ContentLength >= 0 {
		info.ContentLength = resp.ContentLength
	}
	return &Object{
		info: info,
		body: &objectBody{rc: resp.Body, remaining: info.ContentLength},
	}, nil
}

// StatObject returns the named object's headers without its payload.
func (c *Client) StatObject(ctx context.Context, bucket, object string) (*ObjectInfo, error) {
	path, err := c.objectPath(OpStatObject, bucket, object)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpStatObject, http.MethodHead, path, nil, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := c.finish(OpStatObject, resp); err != nil {
		return nil, err
	}
	info := parseObjectInfo(resp.Header)
	if info.ContentLength < 0 && resp.ContentLength >= 0 {
		info.ContentLength = resp.ContentLength
	}
	return info, nil
}

// PutObjectMetadata replaces the object's user metadata without
// touching its payload. The request carries exactly the encoded
// metadata header set and no body, so content-md5 and content-length
// stay unchanged.
func (c *Client) PutObjectMetadata(ctx context.Context, bucket, object string, md Metadata) error {
	path, err := c.objectMetadataPath(OpPutObjectMetadata, bucket, object)
	if err != nil {
		return err
	}
	if err := md.validate(OpPutObjectMetadata); err != nil {
		return err
	}
	resp, err := c.do(ctx, OpPutObjectMetadata, http.MethodPut, path, nil, EncodeMetadata(md), nil, 0)
	if err != nil {
		return err
	}
	return c.finish(OpPutObjectMetadata, resp)
}

// DeleteObject removes the named object. A missing object is a
// not-found error; callers commonly branch on IsNotFound.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	path, err := c.objectPath(OpDeleteObject, bucket, object)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, OpDeleteObject, http.MethodDelete, path, nil, nil, nil, 0)
	if err != nil {
		return err
	}
	return c.finish(OpDeleteObject, resp)
}

// ListObjects opens a streaming listing of the bucket's objects.
// The caller must drain or Close the returned stream.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ObjectStream, error) {
	path, err := c.objectsPath(OpListObjects, bucket)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, OpListObjects, http.MethodGet, path, opts.query(), nil, nil, 0)
	if err != nil {
		return nil, err
	}
	if err := c.checkStatus(OpListObjects, resp); err != nil {
		return nil, err
	}
	return newStream[ObjectEntry](OpListObjects, "bucketobject", resp.Body), nil
}

// payloadReader wraps an upload source and remembers its first error,
// so a transport failure can be attributed to the local payload rather
// than the network.
type payloadReader struct {
	r   io.Reader
	err error
}

func (p *payloadReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && err != io.EOF && p.err == nil {
		p.err = err
	}
	return n, err
}

// objectBody enforces the advertised content-length on a download:
// EOF before the full byte count is a transport error, and mid-stream
// read failures are mapped to the error taxonomy. remaining < 0 means
// the length was unknown and bytes pass through unchecked.
type objectBody struct {
	rc        io.ReadCloser
	remaining int64
}

func (b *objectBody) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	metrics.AddTransferBytes("download", int64(n))
	if b.remaining >= 0 {
		b.remaining -= int64(n)
	}
	if err == io.EOF {
		if b.remaining > 0 {
			return n, wrapError(ErrKindTransport, OpGetObject,
				fmt.Sprintf("response body ended %d bytes short of content-length", b.remaining), io.ErrUnexpectedEOF)
		}
		return n, io.EOF
	}
	if err != nil {
		return n, wrapError(ErrKindTransport, OpGetObject, "reading response body failed", err)
	}
	return n, nil
}

func (b *objectBody) Close() error {
	return b.rc.Close()
}

// countingReader counts payload bytes for transfer metrics.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
