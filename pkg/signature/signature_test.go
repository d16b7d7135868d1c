package signature

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerify_RoundTrip(t *testing.T) {
	body := []byte(`{"lead":"jane@example.com"}`)

	sig := Compute("top-secret", body)

	assert.True(t, Verify("top-secret", body, sig))
	assert.False(t, Verify("wrong-secret", body, sig))
	assert.False(t, Verify("top-secret", []byte(`{"lead":"evil"}`), sig))
	assert.False(t, Verify("top-secret", body, ""))
}

func TestFromHeaders_Precedence(t *testing.T) {
	header := http.Header{}
	header.Set("signature", "ccc")
	header.Set("x-signature", "bbb")
	header.Set("x-webhook-signature", "aaa")

	assert.Equal(t, "aaa", FromHeaders(header))

	header.Del("x-webhook-signature")
	assert.Equal(t, "bbb", FromHeaders(header))

	header.Del("x-signature")
	assert.Equal(t, "ccc", FromHeaders(header))

	header.Del("signature")
	assert.Empty(t, FromHeaders(header))
}

func TestFromHeaders_StripsPrefix(t *testing.T) {
	body := []byte("payload")
	sig := Compute("s3cret", body)

	header := http.Header{}
	header.Set("x-webhook-signature", "sha256="+sig)

	assert.True(t, Verify("s3cret", body, FromHeaders(header)))
}

func TestVerifyTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tolerance := 300 * time.Second

	fresh := strconv.FormatInt(now.Unix()-60, 10)
	assert.True(t, VerifyTimestamp(fresh, tolerance, now))

	stale := strconv.FormatInt(now.Unix()-600, 10)
	assert.False(t, VerifyTimestamp(stale, tolerance, now))

	// Small clock skew into the future is tolerated, large is not.
	skewed := strconv.FormatInt(now.Unix()+60, 10)
	assert.True(t, VerifyTimestamp(skewed, tolerance, now))

	future := strconv.FormatInt(now.Unix()+600, 10)
	assert.False(t, VerifyTimestamp(future, tolerance, now))

	assert.True(t, VerifyTimestamp("", tolerance, now), "absent timestamp passes")
	assert.False(t, VerifyTimestamp("not-a-number", tolerance, now))
}
