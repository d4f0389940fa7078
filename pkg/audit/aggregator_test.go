package audit_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verityscan/bucketsum/pkg/audit"
)

func TestAggregatorSummarize(t *testing.T) {
	results := make(chan audit.Result, 4)
	results <- audit.Result{Key: "z/last.txt", MD5: "aa", Status: audit.StatusSuccess, Attempts: 1}
	results <- audit.Result{Key: "a/first.txt", MD5: "bb", Status: audit.StatusSuccess, Attempts: 2}
	results <- audit.Result{Key: "m/flaky.txt", Status: audit.StatusRetryExhausted, Attempts: 5}
	results <- audit.Result{Key: "m/gone.txt", Status: audit.StatusFatal, Attempts: 1}
	close(results)

	agg := &audit.Aggregator{Log: testLogger()}
	agg.Collect(results)
	summary := agg.Summarize()

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)

	// Results and failures come back sorted by key regardless of arrival order.
	keys := make([]string, 0, len(summary.Results))
	for _, res := range summary.Results {
		keys = append(keys, res.Key)
	}
	assert.Equal(t, []string{"a/first.txt", "m/flaky.txt", "m/gone.txt", "z/last.txt"}, keys)
	assert.Equal(t, "m/flaky.txt", summary.Failures[0].Key)
	assert.Equal(t, "m/gone.txt", summary.Failures[1].Key)

	var report bytes.Buffer
	assert.Nil(t, summary.WriteReport(&report))
	assert.Equal(t,
		"a/first.txt,bb,success\n"+
			"m/flaky.txt,,retry-exhausted\n"+
			"m/gone.txt,,fatal\n"+
			"z/last.txt,aa,success\n",
		report.String())
}
