package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Header names used by the payment gateway on callback requests.
const (
	HeaderCallbackSignature = "X-Callback-Signature"
	HeaderCallbackEvent     = "X-Callback-Event"
)

// EventPaymentStatus is the only callback event kind this service acts upon.
const EventPaymentStatus = "payment_status"

// ComputeCallbackSignature returns the hex-encoded HMAC-SHA256 of the exact
// raw callback body under the merchant private key.
func ComputeCallbackSignature(rawBody, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackSignature recomputes the signature over rawBody and compares
// it to the caller-supplied value in constant time. An empty provided
// signature never verifies.
func VerifyCallbackSignature(rawBody []byte, provided string, secret []byte) bool {
	if provided == "" {
		return false
	}
	expected := ComputeCallbackSignature(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}
