package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sign computes the hex-encoded HMAC-SHA256 of "{timestamp}.{payload}" keyed
// with secret. Receivers recompute this over the raw request body and the
// timestamp header to authenticate the sender.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature for the given timestamp and
// payload. Comparison is constant-time.
func Verify(secret, timestamp string, payload []byte, sig string) bool {
	want := Sign(secret, timestamp, payload)
	return hmac.Equal([]byte(sig), []byte(want))
}

// Timestamp renders t as unix seconds, the format carried in the timestamp
// header and covered by the signature.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
