// Package signature verifies webhook request authenticity. Senders sign the
// raw request body with the webhook's shared secret (HMAC-SHA256, hex); an
// optional timestamp header bounds replay.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SignatureHeaders are checked in order; the first present wins.
var SignatureHeaders = []string{"x-webhook-signature", "x-signature", "signature"}

// TimestampHeader carries the sender's unix-seconds timestamp for replay checks.
const TimestampHeader = "x-webhook-timestamp"

// Compute returns the hex HMAC-SHA256 of the body under the secret.
func Compute(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// FromHeaders extracts the request signature, accepting an optional
// "sha256=" prefix. The empty string means no signature was sent.
func FromHeaders(header http.Header) string {
	for _, name := range SignatureHeaders {
		if value := header.Get(name); value != "" {
			return strings.TrimPrefix(value, "sha256=")
		}
	}

	return ""
}

// Verify checks the given signature against the body and secret in constant
// time, so an attacker cannot learn the expected value byte by byte.
func Verify(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	expected := Compute(secret, body)

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// VerifyTimestamp checks the freshness of a unix-seconds timestamp value
// against the tolerance window. An absent value passes: the timestamp check
// is opt-in on the sender side.
func VerifyTimestamp(value string, tolerance time.Duration, now time.Time) bool {
	if value == "" {
		return true
	}

	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}

	age := now.Sub(time.Unix(ts, 0))
	if age < 0 {
		age = -age
	}

	return age <= tolerance
}
