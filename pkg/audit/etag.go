package audit

import "strings"

// S3-compatible stores expose the ETag as the object's MD5 only for objects
// uploaded in a single part. Multipart uploads carry an md5-of-md5s digest
// with a "-<parts>" suffix instead, and encrypted or extended tags are not
// hex at all, so anything that is not exactly 32 hex characters cannot be
// trusted as a content digest.

// TrustedMD5 reports whether etag is a whole-object MD5 digest, returning it
// normalized to lowercase hex without the surrounding quotes providers add.
func TrustedMD5(etag string) (string, bool) {
	etag = strings.Trim(etag, `"`)
	if len(etag) != 32 {
		return "", false
	}
	for _, c := range etag {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return "", false
		}
	}
	return strings.ToLower(etag), true
}
