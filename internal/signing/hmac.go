package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	TimestampHeader = "X-Noodle-Timestamp"
	SignatureHeader = "X-Noodle-Signature"
)

// MaxSkew bounds how old a signed timestamp may be before Verify rejects it.
const MaxSkew = 5 * time.Minute

func Sign(secret string, payload []byte) (signature string, timestamp int64) {
	timestamp = time.Now().Unix()
	return sign(secret, payload, timestamp), timestamp
}

func Verify(secret string, payload []byte, timestamp int64, signature string) bool {
	age := time.Since(time.Unix(timestamp, 0))
	if age > MaxSkew || age < -MaxSkew {
		return false
	}
	expected := sign(secret, payload, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func sign(secret string, payload []byte, timestamp int64) string {
	toSign := fmt.Sprintf("%d.%s", timestamp, string(payload))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(toSign))

	return fmt.Sprintf("v1=%s", hex.EncodeToString(mac.Sum(nil)))
}
