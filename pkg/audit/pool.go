package audit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Objects are hashed in fixed-size chunks so arbitrarily large objects never
// have to fit in memory.
const hashChunkSize = 1 << 20

// Pool is the bounded set of checksum workers. Each worker drains descriptors
// from the shared queue, streams the object through an MD5 digest under the
// retry policy, and emits exactly one Result per descriptor. One object
// failing never halts the pool.
type Pool struct {
	Store   ObjectStore
	Retry   *Policy
	Workers int
	// TrustETag lets a worker skip the download when the provider already
	// reports a trustworthy whole-object MD5 (single-part uploads only).
	// Anything else falls back to a full download and hash.
	TrustETag bool
	Log       logrus.FieldLogger
}

// Run consumes descriptors from in until it is closed and writes one Result
// per descriptor to out. The caller must keep draining out until Run returns
// and close it afterwards.
func (p *Pool) Run(ctx context.Context, in <-chan ObjectInfo, out chan<- Result) {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		id := i
		go func() {
			defer wg.Done()
			p.work(ctx, id, in, out)
		}()
	}
	wg.Wait()
}

func (p *Pool) work(ctx context.Context, id int, in <-chan ObjectInfo, out chan<- Result) {
	log := p.Log.WithField("worker", id)
	for obj := range in {
		// A cancelled run still finishes the current call rather than
		// abandoning a half-computed hash, but takes no further items. The
		// result channel is drained until the pool shuts down, so delivering
		// the finished result cannot block.
		out <- p.checksum(ctx, log, obj)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Pool) checksum(ctx context.Context, log logrus.FieldLogger, obj ObjectInfo) Result {
	if p.TrustETag {
		if sum, ok := TrustedMD5(obj.ETag); ok {
			log.Debugf("trusting provider digest for %s", obj.Key)
			return Result{Key: obj.Key, MD5: sum, Status: StatusSuccess}
		}
	}

	var sum string
	buf := make([]byte, hashChunkSize)
	attempts, err := p.Retry.Do(ctx, func(ctx context.Context) error {
		body, err := p.Store.Fetch(ctx, obj.Key)
		if err != nil {
			return err
		}
		defer body.Close()

		h := md5.New()
		if _, err := io.CopyBuffer(h, body, buf); err != nil {
			return err
		}
		sum = hex.EncodeToString(h.Sum(nil))
		return nil
	})
	if err != nil {
		status := StatusFatal
		if _, ok := err.(*RetryExhausted); ok {
			status = StatusRetryExhausted
		}
		log.WithError(err).Warnf("failed to checksum %s after %d attempts", obj.Key, attempts)
		return Result{Key: obj.Key, Status: status, Err: err, Attempts: attempts}
	}

	log.Debugf("%s  %s (%d bytes, %d attempts)", sum, obj.Key, obj.Size, attempts)
	return Result{Key: obj.Key, MD5: sum, Status: StatusSuccess, Attempts: attempts}
}
