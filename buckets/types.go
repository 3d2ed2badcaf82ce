package buckets

import (
	"net/http"
	"time"
)

// BucketEntry is one record of a bucket listing stream.
type BucketEntry struct {
	// Name is the bucket name.
	Name string `json:"name"`

	// Type is the record kind, always "bucket" for this entry.
	Type string `json:"type"`

	// Mtime is when the bucket was created or last modified.
	Mtime time.Time `json:"mtime"`
}

// ObjectEntry is one record of an object listing stream. Every record
// carries all seven fields; Type is always "bucketobject".
type ObjectEntry struct {
	// Name is the object name within its bucket.
	Name string `json:"name"`

	// Type is the record kind, always "bucketobject".
	Type string `json:"type"`

	// Mtime is the object's last-modified time, millisecond precision.
	Mtime time.Time `json:"mtime"`

	// ETag is the object's entity tag as reported by the service.
	ETag string `json:"etag"`

	// Size is the object's byte size, never negative.
	Size int64 `json:"size"`

	// ContentType is the stored MIME type.
	ContentType string `json:"contentType"`

	// ContentMD5 is the base64 MD5 digest of the stored payload.
	ContentMD5 string `json:"contentMD5"`
}

// ObjectInfo describes an object as reported by a HEAD or GET response.
// The parsed fields are conveniences; Header carries every response
// header verbatim, including content-md5 and content-length unmodified.
type ObjectInfo struct {
	// ContentLength is the object's byte size. -1 if the server did not
	// advertise one.
	ContentLength int64

	// ContentType is the stored MIME type.
	ContentType string

	// ContentMD5 is the base64 MD5 digest of the stored payload,
	// exactly as the server sent it.
	ContentMD5 string

	// ETag is the object's entity tag.
	ETag string

	// LastModified is the object's last-modified time. Zero if absent.
	LastModified time.Time

	// Metadata holds the user-defined metadata decoded from m-* headers.
	Metadata Metadata

	// Header is the complete response header set, unmodified.
	Header http.Header
}

// ListOptions controls server-side filtering and pagination of listings.
// These are request parameters only; the stream decoder never filters.
type ListOptions struct {
	// Prefix restricts results to names starting with this string.
	Prefix string

	// Marker is the pagination cursor: the last name seen in a
	// previous page. Results start strictly after it.
	Marker string

	// Delimiter groups names sharing a prefix up to the delimiter.
	Delimiter string

	// Limit caps the number of records returned. 0 means the service
	// default.
	Limit int
}

// PutOptions carries the optional parts of an object upload.
type PutOptions struct {
	// ContentLength is the payload size in bytes when known. Negative
	// or zero means unknown, and the body is sent chunked.
	ContentLength int64

	// ContentType sets the stored MIME type. Empty means the service
	// default.
	ContentType string

	// ContentMD5, when set, is forwarded verbatim so the server can
	// reject a corrupted upload. The client never computes a digest
	// itself.
	ContentMD5 string

	// Metadata is attached to the object as m-* headers.
	Metadata Metadata
}

// parseObjectInfo builds an ObjectInfo from response headers.
func parseObjectInfo(h http.Header) *ObjectInfo {
	info := &ObjectInfo{
		ContentLength: -1,
		ContentType:   h.Get("Content-Type"),
		ContentMD5:    h.Get("Content-Md5"),
		ETag:          h.Get("Etag"),
		Metadata:      DecodeMetadata(h),
		Header:        h,
	}
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := parseContentLength(cl); err == nil {
			info.ContentLength = n
		}
	}
	if lm := h.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	return info
}
