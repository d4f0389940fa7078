package wasabi_test

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/verityscan/bucketsum/pkg/audit"
	"github.com/verityscan/bucketsum/pkg/wasabi"
)

func TestClassifyThrottling(t *testing.T) {
	for _, code := range []string{"SlowDown", "SlowDownRead", "RequestLimitExceeded", "Throttling", "ServiceUnavailable"} {
		err := awserr.New(code, "please slow down", nil)
		assert.Equal(t, audit.ClassTransient, wasabi.Classify(err), "code %s should be transient", code)
	}
}

func TestClassifyFatal(t *testing.T) {
	for _, code := range []string{"NoSuchKey", "AccessDenied", "InvalidRequest"} {
		err := awserr.New(code, "rejected", nil)
		assert.Equal(t, audit.ClassFatal, wasabi.Classify(err), "code %s should be fatal", code)
	}
}

func TestClassifyUnwrapsCause(t *testing.T) {
	err := errors.Wrap(awserr.New("SlowDown", "please slow down", nil), "fetching page")
	assert.Equal(t, audit.ClassTransient, wasabi.Classify(err))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyNetworkTimeout(t *testing.T) {
	assert.Equal(t, audit.ClassTransient, wasabi.Classify(timeoutErr{}))
}

func TestClassifyUnknownErrorIsFatal(t *testing.T) {
	assert.Equal(t, audit.ClassFatal, wasabi.Classify(errors.New("something else entirely")))
}
