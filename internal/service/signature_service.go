package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// HMACSignatureService signs and verifies HMAC-SHA256 request signatures. It
// is shared by payment callbacks, index writes and status notifications.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return hex.EncodeToString(macOf(secretKey, payload))
}

// Verify compares the decoded signature against the expected MAC in constant
// time. Hex case is not significant.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(macOf(secretKey, payload), got)
}

// BuildCanonicalString joins METHOD|PATH|TIMESTAMP|NONCE|hex(sha256(BODY)).
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	bodySum := sha256.Sum256([]byte(body))
	return strings.Join([]string{
		method,
		path,
		strconv.FormatInt(timestamp, 10),
		nonce,
		hex.EncodeToString(bodySum[:]),
	}, "|")
}

func macOf(secretKey, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
