package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"civic-document-service/internal/core/domain"
	"civic-document-service/pkg/apperror"
)

// SHA256DigestService implements ports.DigestService over raw signature bytes.
type SHA256DigestService struct{}

// NewSHA256DigestService creates a new digest service.
func NewSHA256DigestService() *SHA256DigestService {
	return &SHA256DigestService{}
}

// Digest returns the lowercase hex SHA-256 of content.
// Empty content has no digest and yields domain.NoDigest.
func (s *SHA256DigestService) Digest(content []byte) string {
	if len(content) == 0 {
		return domain.NoDigest
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the digest of content and compares it with expected.
func (s *SHA256DigestService) Verify(content []byte, expected string) bool {
	return s.Equal(s.Digest(content), expected)
}

// Equal compares two hex digests case-insensitively in constant time.
// The NoDigest sentinel never matches anything, itself included.
func (s *SHA256DigestService) Equal(a, b string) bool {
	if a == domain.NoDigest || b == domain.NoDigest {
		return false
	}
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// DecodeSignature decodes signature content from its wire encoding.
// Accepted: standard or URL-safe base64 (padded or not), or a data URL
// of the form data:<mime>;base64,<payload>.
func (s *SHA256DigestService) DecodeSignature(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, apperror.ErrInvalidSignatureContent(fmt.Errorf("empty signature"))
	}

	if strings.HasPrefix(encoded, "data:") {
		meta, payload, ok := strings.Cut(encoded, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, apperror.ErrInvalidSignatureContent(fmt.Errorf("data URL is not base64 encoded"))
		}
		encoded = payload
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(encoded); err == nil {
			if len(raw) == 0 {
				return nil, apperror.ErrInvalidSignatureContent(fmt.Errorf("signature decodes to no bytes"))
			}
			return raw, nil
		}
	}

	return nil, apperror.ErrInvalidSignatureContent(fmt.Errorf("signature is not valid base64"))
}
