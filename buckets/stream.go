package buckets

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/aripsetiawan24/manta-buckets-go/internal/metrics"
)

// Stream is a pull-based decoder over a newline-delimited JSON listing
// body. Network bytes are read only when Next is called, so an
// undrained stream holds at most one buffered read of look-ahead.
//
// Usage:
//
//	st, err := client.ListObjects(ctx, "b1", buckets.ListOptions{})
//	if err != nil { ... }
//	defer st.Close()
//
//	for st.Next() {
//	    entry := st.Entry()
//	    ...
//	}
//	if err := st.Err(); err != nil { ... }
//
// A Stream is single-consumer: it must not be used from multiple
// goroutines concurrently.
type Stream[T any] struct {
	op     Op
	kind   string // metrics label: "bucket" or "bucketobject"
	body   io.ReadCloser
	br     *bufio.Reader
	entry  T
	err    error
	done   bool
	closed bool
}

func newStream[T any](op Op, kind string, body io.ReadCloser) *Stream[T] {
	return &Stream[T]{
		op:   op,
		kind: kind,
		body: body,
		br:   bufio.NewReader(body),
	}
}

// BucketStream is a listing stream of bucket records.
type BucketStream = Stream[BucketEntry]

// ObjectStream is a listing stream of object records.
type ObjectStream = Stream[ObjectEntry]

// Next advances to the next record. It blocks on the network while the
// next line is incomplete and returns false at end of stream or on the
// first error; records already returned stay valid either way. After
// Next returns false it never returns true again.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}
	for {
		line, readErr := s.br.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			s.fail(wrapError(ErrKindTransport, s.op, "listing stream read failed", readErr))
			return false
		}

		// A line ending exactly at EOF arrives with readErr == io.EOF
		// and no trailing LF. Anything non-blank left over without a
		// terminator is a truncated record.
		trimmed := bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(trimmed)) == 0 {
			if readErr == io.EOF {
				s.finish()
				return false
			}
			continue // blank line between records
		}
		if readErr == io.EOF && !bytes.HasSuffix(line, []byte("\n")) {
			s.fail(newError(ErrKindDecode, s.op, "listing stream ended inside a record"))
			return false
		}

		var entry T
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			s.fail(wrapError(ErrKindDecode, s.op, "malformed listing record", err))
			return false
		}
		s.entry = entry
		metrics.ListRecordsTotal.WithLabelValues(s.kind).Inc()
		return true
	}
}

// Entry returns the record produced by the last successful Next.
func (s *Stream[T]) Entry() T {
	return s.entry
}

// Err returns the terminal error, or nil after a clean end of stream.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying response body. Closing before end of
// stream aborts the in-flight response so the connection is not left
// reading an unobserved body. Close is idempotent.
func (s *Stream[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.done = true
	return s.body.Close()
}

// Collect drains the stream into a slice and closes it. The slice is
// non-nil even for an empty listing. On error the records decoded
// before the failure are returned alongside it.
func (s *Stream[T]) Collect() ([]T, error) {
	defer s.Close()
	entries := make([]T, 0)
	for s.Next() {
		entries = append(entries, s.Entry())
	}
	return entries, s.Err()
}

func (s *Stream[T]) fail(err error) {
	s.err = err
	s.done = true
	s.Close()
}

func (s *Stream[T]) finish() {
	s.done = true
	s.Close()
}
