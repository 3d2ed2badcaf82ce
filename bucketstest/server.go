// Package bucketstest is an in-memory buckets service speaking the same
// wire protocol as the real thing: escaped resource paths, m-* metadata
// headers, base64 content-md5, and LF-delimited JSON listing streams.
// It backs the test suites, the examples, and local development.
//
// Usage:
//
//	srv := httptest.NewServer(bucketstest.New().Handler())
//	defer srv.Close()
package bucketstest

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// mtimeFormat is ISO-8601 with millisecond precision.
const mtimeFormat = "2006-01-02T15:04:05.000Z"

// Server is an in-memory buckets service. Safe for concurrent use.
type Server struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	// RequireAuth, when true, rejects requests without an
	// Authorization header with 401. Used by transport tests.
	RequireAuth bool
}

type bucket struct {
	name    string
	mtime   time.Time
	objects map[string]*object
}

type object struct {
	name        string
	data        []byte
	contentType string
	contentMD5  string
	etag        string
	mtime       time.Time
	metadata    map[string]string
}

// New returns an empty Server.
func New() *Server {
	return &Server{buckets: make(map[string]*bucket)}
}

// Handler returns the http.Handler implementing the wire protocol.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)

	r.Route("/{account}/buckets", func(r chi.Router) {
		r.Options("/", s.handleSupported)
		r.Get("/", s.handleListBuckets)
		r.Route("/{bucket}", func(r chi.Router) {
			r.Put("/", s.handleCreateBucket)
			r.Head("/", s.handleHeadBucket)
			r.Delete("/", s.handleDeleteBucket)
			r.Get("/objects", s.handleListObjects)
			// Object names travel escaped and may contain %2F, so the
			// tail past /objects/ is parsed from the escaped path
			// instead of a route parameter.
			r.HandleFunc("/objects/*", s.handleObject)
		})
	})

	return r
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RequireAuth && r.Header.Get("Authorization") == "" {
			writeError(w, http.StatusUnauthorized, "AuthorizationRequired", "request is not signed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Bucket handlers ---

func (s *Server) handleSupported(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; ok {
		writeError(w, http.StatusConflict, "BucketAlreadyExists", fmt.Sprintf("bucket %q already exists", name))
		return
	}
	s.buckets[name] = &bucket{
		name:    name,
		mtime:   time.Now().UTC(),
		objects: make(map[string]*object),
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeadBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	s.mu.Lock()
	_, ok := s.buckets[name]
	s.mu.Unlock()
	if !ok {
		// HEAD carries no body, the status alone is the answer.
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteBucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "bucket")

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "BucketNotFound", fmt.Sprintf("bucket %q does not exist", name))
		return
	}
	if len(b.objects) > 0 {
		writeError(w, http.StatusConflict, "BucketNotEmpty", fmt.Sprintf("bucket %q is not empty", name))
		return
	}
	delete(s.buckets, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	opts := listQuery(r)

	s.mu.Lock()
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	records := make([]map[string]any, 0, len(names))
	sort.Strings(names)
	for _, name := range selectNames(names, opts) {
		b := s.buckets[name]
		records = append(records, map[string]any{
			"name":  b.name,
			"type":  "bucket",
			"mtime": b.mtime.Format(mtimeFormat),
		})
	}
	s.mu.Unlock()

	writeStream(w, "bucket", records)
}

// --- Object handlers ---

// handleObject dispatches PUT/GET/HEAD/DELETE on a single object plus
// the PUT .../:object/metadata update. The object name is recovered
// from the escaped path so that %2F inside a name survives.
func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	bucketName := chi.URLParam(r, "bucket")
	prefix := fmt.Sprintf("/%s/buckets/%s/objects/",
		url.PathEscape(account), url.PathEscape(bucketName))

	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	if rest == r.URL.EscapedPath() || rest == "" {
		writeError(w, http.StatusBadRequest, "InvalidResource", "malformed object path")
		return
	}

	segments := strings.Split(rest, "/")
	name, err := url.PathUnescape(segments[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidResource", "malformed object name")
		return
	}

	switch {
	case len(segments) == 1:
		switch r.Method {
		case http.MethodPut:
			s.putObject(w, r, bucketName, name)
		case http.MethodGet:
			s.getObject(w, r, bucketName, name, true)
		case http.MethodHead:
			s.getObject(w, r, bucketName, name, false)
		case http.MethodDelete:
			s.deleteObject(w, r, bucketName, name)
		default:
			writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method+" is not allowed")
		}
	case len(segments) == 2 && segments[1] == "metadata" && r.Method == http.MethodPut:
		s.putObjectMetadata(w, r, bucketName, name)
	default:
		writeError(w, http.StatusBadRequest, "InvalidResource", "malformed object path")
	}
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, bucketName, name string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "IncompleteBody", "request body could not be read")
		return
	}

	sum := md5.Sum(data)
	contentMD5 := base64.StdEncoding.EncodeToString(sum[:])

	if want := r.Header.Get("Content-Md5"); want != "" && want != contentMD5 {
		writeError(w, http.StatusBadRequest, "ContentMD5Mismatch", "content-md5 does not match body")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		writeError(w, http.StatusNotFound, "BucketNotFound", fmt.Sprintf("bucket %q does not exist", bucketName))
		return
	}
	obj := &object{
		name:        name,
		data:        data,
		contentType: contentType,
		contentMD5:  contentMD5,
		etag:        hex.EncodeToString(sum[:]),
		mtime:       time.Now().UTC(),
		metadata:    metadataFromHeader(r.Header),
	}
	b.objects[name] = obj

	w.Header().Set("Etag", obj.etag)
	w.Header().Set("Computed-Md5", contentMD5)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request, bucketName, name string, withBody bool) {
	s.mu.Lock()
	obj, errStatus, errCode := s.lookupObject(bucketName, name)
	s.mu.Unlock()
	if obj == nil {
		if withBody {
			writeError(w, errStatus, errCode, fmt.Sprintf("object %q does not exist", name))
		} else {
			w.WriteHeader(errStatus)
		}
		return
	}

	h := w.Header()
	h.Set("Content-Type", obj.contentType)
	h.Set("Content-Length", strconv.Itoa(len(obj.data)))
	h.Set("Content-Md5", obj.contentMD5)
	h.Set("Etag", obj.etag)
	h.Set("Last-Modified", obj.mtime.Format(http.TimeFormat))
	for k, v := range obj.metadata {
		h.Set("m-"+k, v)
	}

	w.WriteHeader(http.StatusOK)
	if withBody {
		w.Write(obj.data) //nolint:errcheck
	}
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request, bucketName, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, errStatus, errCode := s.lookupObject(bucketName, name)
	if obj == nil {
		writeError(w, errStatus, errCode, fmt.Sprintf("object %q does not exist", name))
		return
	}
	delete(s.buckets[bucketName].objects, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putObjectMetadata(w http.ResponseWriter, r *http.Request, bucketName, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, errStatus, errCode := s.lookupObject(bucketName, name)
	if obj == nil {
		writeError(w, errStatus, errCode, fmt.Sprintf("object %q does not exist", name))
		return
	}
	// Metadata replacement leaves payload, content-md5, and etag alone.
	obj.metadata = metadataFromHeader(r.Header)
	obj.mtime = time.Now().UTC()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	bucketName := chi.URLParam(r, "bucket")
	opts := listQuery(r)

	s.mu.Lock()
	b, ok := s.buckets[bucketName]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "BucketNotFound", fmt.Sprintf("bucket %q does not exist", bucketName))
		return
	}
	names := make([]string, 0, len(b.objects))
	for name := range b.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	records := make([]map[string]any, 0, len(names))
	for _, name := range selectNames(names, opts) {
		obj := b.objects[name]
		records = append(records, map[string]any{
			"name":        obj.name,
			"type":        "bucketobject",
			"mtime":       obj.mtime.Format(mtimeFormat),
			"etag":        obj.etag,
			"size":        len(obj.data),
			"contentType": obj.contentType,
			"contentMD5":  obj.contentMD5,
		})
	}
	s.mu.Unlock()

	writeStream(w, "bucketobject", records)
}

// lookupObject resolves (bucket, object) under s.mu. On a miss it
// returns the status and service code to answer with.
func (s *Server) lookupObject(bucketName, name string) (*object, int, string) {
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil, http.StatusNotFound, "BucketNotFound"
	}
	obj, ok := b.objects[name]
	if !ok {
		return nil, http.StatusNotFound, "ObjectNotFound"
	}
	return obj, 0, ""
}

// --- Wire helpers ---

type listOpts struct {
	prefix string
	marker string
	limit  int
}

func listQuery(r *http.Request) listOpts {
	q := r.URL.Query()
	opts := listOpts{
		prefix: q.Get("prefix"),
		marker: q.Get("marker"),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.limit = n
	}
	return opts
}

// selectNames applies prefix/marker/limit to lexicographically sorted
// names, the way the service pages listings.
func selectNames(names []string, opts listOpts) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if opts.prefix != "" && !strings.HasPrefix(name, opts.prefix) {
			continue
		}
		if opts.marker != "" && name <= opts.marker {
			continue
		}
		out = append(out, name)
		if opts.limit > 0 && len(out) == opts.limit {
			break
		}
	}
	return out
}

// writeStream sends records as an LF-delimited JSON stream, one record
// per line, flushing after each so clients see chunked delivery.
func writeStream(w http.ResponseWriter, kind string, records []map[string]any) {
	w.Header().Set("Content-Type", "application/x-json-stream; type="+kind)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w) // Encode appends the LF terminator
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// writeError sends the service's JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"code":    code,
		"message": message,
	})
}

func metadataFromHeader(h http.Header) map[string]string {
	md := make(map[string]string)
	for k, vs := range h {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "m-") && len(vs) > 0 {
			md[strings.TrimPrefix(lk, "m-")] = vs[0]
		}
	}
	return md
}
