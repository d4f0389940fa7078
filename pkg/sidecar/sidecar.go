// Publishes .md5 sidecar objects alongside audited keys so later runs (or
// other tooling) can compare digests without redownloading content.
package sidecar

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/verityscan/bucketsum/pkg/audit"
)

// Suffix is appended to the audited key to form the sidecar key.
const Suffix = ".md5"

// Stats accounts for one Publish pass.
type Stats struct {
	Published int
	Skipped   int
	Failed    int
}

// Publisher writes one sidecar per successful result. Provider calls go
// through the same retry policy and admission gate as the scan itself.
type Publisher struct {
	Store audit.ObjectStore
	Retry *audit.Policy
	Log   logrus.FieldLogger
}

// Publish uploads "<md5>  <key>" sidecars for every successful result,
// skipping keys that already have one and keys that are themselves sidecars.
// A single key failing is logged and counted, never fatal.
func (p *Publisher) Publish(ctx context.Context, results []audit.Result) Stats {
	var stats Stats
	for _, res := range results {
		if ctx.Err() != nil {
			p.Log.Warnf("publishing interrupted, remaining sidecars not written: %v", ctx.Err())
			break
		}
		if res.Status != audit.StatusSuccess || strings.HasSuffix(res.Key, Suffix) {
			continue
		}

		key := res.Key + Suffix
		_, err := p.Retry.Do(ctx, func(ctx context.Context) error {
			_, err := p.Store.Stat(ctx, key)
			return err
		})
		if err == nil {
			p.Log.Debugf("sidecar already present for %s", res.Key)
			stats.Skipped++
			continue
		}
		if errors.Cause(err) != audit.ErrNotExist {
			p.Log.WithError(err).Warnf("could not check for existing sidecar of %s", res.Key)
			stats.Failed++
			continue
		}

		body := []byte(fmt.Sprintf("%s  %s\n", res.MD5, res.Key))
		if _, err := p.Retry.Do(ctx, func(ctx context.Context) error {
			return p.Store.Put(ctx, key, body)
		}); err != nil {
			p.Log.WithError(err).Warnf("failed to publish sidecar for %s", res.Key)
			stats.Failed++
			continue
		}
		p.Log.Debugf("published %s", key)
		stats.Published++
	}
	return stats
}
