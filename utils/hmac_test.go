package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashBodySHA256(t *testing.T) {
	assert.Equal(t, EmptyBodyHash, HashBodySHA256(nil))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashBodySHA256([]byte("hello")))
}

func TestVerifyRequestSignature(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ts := now.Unix()
	sig := ComputeHMACSHA256("secret", BuildStringToSign("POST", "/api/v1/media/files", ts, EmptyBodyHash))

	assert.NoError(t, VerifyRequestSignature("secret", "POST", "/api/v1/media/files", ts, EmptyBodyHash, sig, now))
	assert.Error(t, VerifyRequestSignature("other", "POST", "/api/v1/media/files", ts, EmptyBodyHash, sig, now))
	assert.Error(t, VerifyRequestSignature("secret", "GET", "/api/v1/media/files", ts, EmptyBodyHash, sig, now))
	assert.Error(t, VerifyRequestSignature("secret", "POST", "/api/v1/media/files", ts, EmptyBodyHash, sig, now.Add(10*time.Minute)))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, int64(3), Abs(-3))
	assert.Equal(t, int64(3), Abs(3))
}
