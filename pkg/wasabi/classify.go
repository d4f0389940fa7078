package wasabi

import (
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/verityscan/bucketsum/pkg/audit"
)

// Error codes Wasabi and other S3-compatible stores use to signal that the
// caller is over its request budget or that the service is momentarily
// unavailable. Some of these never carry an HTTP status the SDK recognizes
// as throttling, so they are matched by code as well.
var throttleCodes = map[string]bool{
	"SlowDown":             true,
	"SlowDownRead":         true,
	"SlowDownWrite":        true,
	"RequestLimitExceeded": true,
	"Throttling":           true,
	"ThrottlingException":  true,
	"RequestTimeout":       true,
	"ServiceUnavailable":   true,
	"InternalError":        true,
}

// Classify maps a provider error onto the retry policy's taxonomy.
// Throttling signals and network-level timeouts are transient; anything the
// provider rejects outright, like a missing key or denied access, is fatal.
func Classify(err error) audit.ErrorClass {
	cause := errors.Cause(err)

	if aerr, ok := cause.(awserr.Error); ok {
		if throttleCodes[aerr.Code()] || request.IsErrorThrottle(aerr) || request.IsErrorRetryable(aerr) {
			return audit.ClassTransient
		}
		return audit.ClassFatal
	}
	if nerr, ok := cause.(net.Error); ok && (nerr.Timeout() || nerr.Temporary()) {
		return audit.ClassTransient
	}
	return audit.ClassFatal
}

func isNotFound(err error) bool {
	if aerr, ok := errors.Cause(err).(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
		if reqErr, ok := aerr.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
			return true
		}
	}
	return false
}
