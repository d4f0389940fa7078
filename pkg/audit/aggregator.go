package audit

import (
	"encoding/csv"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
)

// Summary is the terminal accounting for a completed run. It is only valid
// once the lister has exhausted the prefix and every dispatched descriptor
// has a terminal result.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	// Failures holds the terminal result of every non-success key, sorted.
	Failures []Result
	// Results holds every terminal result sorted by key, so reports are
	// stable across worker counts and arrival order.
	Results []Result
}

// WriteReport emits one "key,md5,status" line per object.
func (s Summary) WriteReport(w io.Writer) error {
	cw := csv.NewWriter(w)
	for _, res := range s.Results {
		if err := cw.Write([]string{res.Key, res.MD5, res.Status.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Aggregator collects worker results. Results arrive over a channel in no
// particular order, so the aggregator owns its map outright and needs no
// locking.
type Aggregator struct {
	Log     logrus.FieldLogger
	results map[string]Result
}

// Collect drains in until it is closed. Exactly one result per key is
// expected; a duplicate indicates a pipeline bug and is logged.
func (a *Aggregator) Collect(in <-chan Result) {
	if a.results == nil {
		a.results = make(map[string]Result)
	}
	for res := range in {
		if _, dup := a.results[res.Key]; dup {
			a.Log.Warnf("duplicate result for %s", res.Key)
		}
		a.results[res.Key] = res
	}
}

// Summarize builds the final report. Call only after Collect has returned.
func (a *Aggregator) Summarize() Summary {
	keys := make([]string, 0, len(a.results))
	for k := range a.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := Summary{Total: len(keys)}
	for _, k := range keys {
		res := a.results[k]
		s.Results = append(s.Results, res)
		if res.Status == StatusSuccess {
			s.Succeeded++
		} else {
			s.Failed++
			s.Failures = append(s.Failures, res)
		}
	}
	return s
}
