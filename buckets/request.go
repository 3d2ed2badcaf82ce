package buckets

import (
	"net/url"
	"strconv"
)

// Resource paths are derived deterministically from the account, bucket,
// and object names. Every name travels as a single escaped path segment,
// so an object name containing "/" stays one segment on the wire.

func (c *Client) bucketsPath(op Op) (string, error) {
	if c.cfg.Account == "" {
		return "", newError(ErrKindInvalidArgument, op, "account name must not be empty")
	}
	return "/" + url.PathEscape(c.cfg.Account) + "/buckets", nil
}

func (c *Client) bucketPath(op Op, bucket string) (string, error) {
	base, err := c.bucketsPath(op)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		return "", newError(ErrKindInvalidArgument, op, "bucket name must not be empty")
	}
	return base + "/" + url.PathEscape(bucket), nil
}

func (c *Client) objectsPath(op Op, bucket string) (string, error) {
	base, err := c.bucketPath(op, bucket)
	if err != nil {
		return "", err
	}
	return base + "/objects", nil
}

func (c *Client) objectPath(op Op, bucket, object string) (string, error) {
	base, err := c.objectsPath(op, bucket)
	if err != nil {
		return "", err
	}
	if object == "" {
		return "", newError(ErrKindInvalidArgument, op, "object name must not be empty")
	}
	return base + "/" + url.PathEscape(object), nil
}

func (c *Client) objectMetadataPath(op Op, bucket, object string) (string, error) {
	base, err := c.objectPath(op, bucket, object)
	if err != nil {
		return "", err
	}
	return base + "/metadata", nil
}

// query renders o as listing query parameters. Zero-valued options
// produce no parameters at all.
func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}
	if o.Marker != "" {
		q.Set("marker", o.Marker)
	}
	if o.Delimiter != "" {
		q.Set("delimiter", o.Delimiter)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	return q
}

func parseContentLength(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
