// Standard interfaces and datatypes for the bucketsum pipeline.
// Terms:
//   "store" : a provider-specific client for an object storage service (e.g. Wasabi, AWS S3)
//   "scan"  : one full enumerate-and-checksum pass over a key prefix
package audit

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// ObjectInfo describes a single stored object as reported by the provider.
// Descriptors are immutable once produced by the lister.
type ObjectInfo struct {
	// Full key under the bucket
	Key string
	// Object size in bytes
	Size int64
	// Provider-reported entity tag, if any. For S3-compatible stores this is
	// an MD5 hex digest only for non-multipart uploads (see TrustedMD5).
	ETag string
}

// Status classifies the terminal outcome for one object.
type Status int

const (
	StatusSuccess Status = iota
	StatusRetryExhausted
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetryExhausted:
		return "retry-exhausted"
	case StatusFatal:
		return "fatal"
	}
	return "unknown"
}

// Result is the terminal outcome for a single object. Exactly one Result is
// produced per listed key, regardless of worker count or retries.
type Result struct {
	Key string
	// Hex digest, empty unless Status is StatusSuccess
	MD5      string
	Status   Status
	Err      error
	Attempts int
}

// ErrNotExist is returned by ObjectStore.Stat when no object is stored under
// the requested key.
var ErrNotExist = errors.New("object does not exist")

// ObjectStore is the provider client the pipeline consumes. Implementations
// must be safe for concurrent use; the pipeline never calls it without first
// passing the admission gate.
type ObjectStore interface {
	// ListPage returns one page of descriptors under prefix. token is the
	// continuation token from the previous page ("" requests the first page);
	// next is "" once pagination is complete.
	ListPage(ctx context.Context, prefix, token string) (objects []ObjectInfo, next string, err error)

	// Fetch opens the object content for streaming. The caller must close the
	// returned reader on every exit path.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat reports metadata for a single key, or ErrNotExist.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Put stores body under key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte) error
}
