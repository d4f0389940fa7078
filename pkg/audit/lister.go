package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ListingFailure aborts the whole run: if any page cannot be fetched the
// enumeration is incomplete and the every-object-checksummed guarantee is
// gone. End of pagination is normal termination, not a failure.
type ListingFailure struct {
	Prefix string
	Err    error
}

func (e *ListingFailure) Error() string {
	return fmt.Sprintf("listing objects under %q failed: %v", e.Prefix, e.Err)
}

// Cause supports unwrapping through pkg/errors.
func (e *ListingFailure) Cause() error { return e.Err }

// Lister enumerates every object under a prefix and feeds descriptors to the
// worker pool through a bounded channel, so listing can never run arbitrarily
// far ahead of checksum throughput. Page fetches consume the same request
// budget as object fetches and go through the same retry policy.
type Lister struct {
	Store  ObjectStore
	Retry  *Policy
	Prefix string
	// Keys ending in any of these suffixes (compared lowercased) are skipped.
	SkipSuffixes []string
	Log          logrus.FieldLogger
}

// Run pushes every descriptor under the prefix into out and closes it on
// return. A page fetch that fails fatally or exhausts its retries is
// surfaced as a *ListingFailure.
func (l *Lister) Run(ctx context.Context, out chan<- ObjectInfo) error {
	defer close(out)

	token := ""
	pages, total := 0, 0
	for {
		var objects []ObjectInfo
		var next string
		_, err := l.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			objects, next, err = l.Store.ListPage(ctx, l.Prefix, token)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ListingFailure{Prefix: l.Prefix, Err: err}
		}
		pages++

		for _, obj := range objects {
			if l.skip(obj.Key) {
				l.Log.Debugf("skipping %s by extension", obj.Key)
				continue
			}
			select {
			case out <- obj:
				total++
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if next == "" {
			l.Log.Debugf("listed %d objects in %d pages under %q", total, pages, l.Prefix)
			return nil
		}
		token = next
	}
}

func (l *Lister) skip(key string) bool {
	lower := strings.ToLower(key)
	for _, suffix := range l.SkipSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
