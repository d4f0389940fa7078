package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Defaults mirror the provider limits this tool was written against: Wasabi
// allows roughly 1000 GETs a minute, and five attempts with 1s..16s backoff
// rides out its SlowDown responses.
const (
	DefaultWorkers        = 8
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 16 * time.Second
	DefaultRequestsPerSec = 16
)

// Options configures a scan. Zero values fall back to the defaults above;
// RequestsPerSec < 0 disables the rate budget entirely.
type Options struct {
	Prefix         string
	Workers        int
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	RequestsPerSec float64
	// Cap on concurrent in-flight provider requests; 0 leaves admission to
	// the rate budget alone.
	MaxInflight int
	// Bound on the descriptor queue between lister and workers.
	QueueDepth   int
	SkipSuffixes []string
	TrustETag    bool
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.RequestsPerSec == 0 {
		o.RequestsPerSec = DefaultRequestsPerSec
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 2 * o.Workers
	}
	return o
}

// NewPolicy builds the retry policy, including a fresh admission gate, for
// provider calls made under these options.
func (o Options) NewPolicy(classify Classifier) *Policy {
	o = o.withDefaults()
	return &Policy{
		MaxAttempts: o.MaxAttempts,
		BaseDelay:   o.BaseDelay,
		MaxDelay:    o.MaxDelay,
		Classify:    classify,
		Limiter:     NewLimiter(o.RequestsPerSec, o.MaxInflight),
	}
}

// Scanner wires the lister, the checksum worker pool and the aggregator into
// one run over a prefix.
type Scanner struct {
	store    ObjectStore
	classify Classifier
	log      logrus.FieldLogger
	opts     Options
}

func NewScanner(store ObjectStore, classify Classifier, log logrus.FieldLogger, opts Options) *Scanner {
	return &Scanner{
		store:    store,
		classify: classify,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

// Run executes the pipeline and blocks until the prefix is exhausted and
// every dispatched descriptor has a terminal result, or until the run is
// aborted by a listing failure or cancellation. The Summary is only complete
// when err is nil.
func (s *Scanner) Run(ctx context.Context) (Summary, error) {
	objects := make(chan ObjectInfo, s.opts.QueueDepth)
	results := make(chan Result, s.opts.Workers)

	policy := s.opts.NewPolicy(s.classify)

	lister := &Lister{
		Store:        s.store,
		Retry:        policy,
		Prefix:       s.opts.Prefix,
		SkipSuffixes: s.opts.SkipSuffixes,
		Log:          s.log.WithField("module", "lister"),
	}
	pool := &Pool{
		Store:     s.store,
		Retry:     policy,
		Workers:   s.opts.Workers,
		TrustETag: s.opts.TrustETag,
		Log:       s.log.WithField("module", "pool"),
	}
	agg := &Aggregator{Log: s.log.WithField("module", "aggregator")}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lister.Run(gctx, objects)
	})
	g.Go(func() error {
		pool.Run(gctx, objects, results)
		close(results)
		return nil
	})

	collected := make(chan struct{})
	go func() {
		agg.Collect(results)
		close(collected)
	}()

	err := g.Wait()
	<-collected
	if err == nil {
		// Cancellation can race a clean drain: the lister may have closed
		// the queue before the signal landed, leaving workers to abandon the
		// queued remainder. A cancelled run must never pass itself off as a
		// complete summary.
		err = ctx.Err()
	}
	if err != nil {
		return Summary{}, err
	}
	return agg.Summarize(), nil
}
