package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// EmptyBodyHash is the SHA256 of an empty body.
const EmptyBodyHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// SignatureTolerance bounds the clock skew accepted on X-Timestamp.
const SignatureTolerance = 5 * time.Minute

// BuildStringToSign returns METHOD\nPATH\nTIMESTAMP\nSHA256(body).
// path excludes the query string.
func BuildStringToSign(method, path string, timestamp int64, bodyHash string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s", method, path, timestamp, bodyHash)
}

// ComputeHMACSHA256 returns the hex encoded signature of message.
func ComputeHMACSHA256(secretKey, message string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// SecureCompare compares in constant time. Use it for signatures.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func HashBodySHA256(body []byte) string {
	if len(body) == 0 {
		return EmptyBodyHash
	}
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// VerifyRequestSignature checks a client signature and its timestamp window.
func VerifyRequestSignature(secretKey, method, path string, timestamp int64, bodyHash, signature string, now time.Time) error {
	if Abs(now.Unix()-timestamp) > int64(SignatureTolerance/time.Second) {
		return fmt.Errorf("request timestamp outside of %s window", SignatureTolerance)
	}
	expected := ComputeHMACSHA256(secretKey, BuildStringToSign(method, path, timestamp, bodyHash))
	if !SecureCompare(expected, signature) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func Abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
