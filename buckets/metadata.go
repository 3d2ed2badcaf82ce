package buckets

import (
	"net/http"
	"strconv"
	"strings"
)

// MetadataPrefix is the header prefix reserved by the service for
// user-defined object metadata. A metadata key "foo" travels as the
// header "m-foo".
const MetadataPrefix = "m-"

// Metadata is the user-facing key/value metadata attached to an object.
// Keys are case-insensitive on the wire (they are HTTP header names); the
// client normalizes them to lower case in both directions, so two keys that
// differ only in case collide.
type Metadata map[string]string

// EncodeMetadata maps metadata to its header form: every key prefixed with
// MetadataPrefix and lower-cased. The returned header set carries metadata
// headers only; attaching it to a request never alters unrelated headers.
func EncodeMetadata(md Metadata) http.Header {
	h := make(http.Header, len(md))
	for k, v := range md {
		h.Set(MetadataPrefix+strings.ToLower(k), v)
	}
	return h
}

// DecodeMetadata reconstructs the metadata map from a header set, dropping
// every non-metadata header. For any metadata map md with non-colliding
// keys, DecodeMetadata(EncodeMetadata(md)) equals md.
func DecodeMetadata(h http.Header) Metadata {
	md := make(Metadata)
	for k, vs := range h {
		if len(vs) == 0 {
			continue
		}
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, MetadataPrefix) {
			continue
		}
		key := strings.TrimPrefix(lk, MetadataPrefix)
		if key == "" {
			continue
		}
		md[key] = vs[0]
	}
	return md
}

// validate rejects metadata the service cannot carry as headers.
func (md Metadata) validate(op Op) error {
	for k := range md {
		if k == "" {
			return newError(ErrKindInvalidArgument, op, "metadata key must not be empty")
		}
		if strings.ContainsAny(k, " :\r\n") {
			return newError(ErrKindInvalidArgument, op, "metadata key "+strconv.Quote(k)+" contains header-illegal characters")
		}
	}
	return nil
}
