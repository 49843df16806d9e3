package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"
)

// Signer handles OKX v5 API authentication signatures
type Signer struct {
	accessKey  string
	secretKey  string
	passphrase string
	now        func() time.Time
}

// NewSigner creates a new Signer instance. It returns nil when no key is
// configured; a nil Signer leaves requests unsigned.
func NewSigner(accessKey, secretKey, passphrase string) *Signer {
	if accessKey == "" || secretKey == "" {
		return nil
	}
	return &Signer{
		accessKey:  accessKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		now:        time.Now,
	}
}

// GenerateHeaders creates the necessary headers for a request
// method: GET, POST, etc.
// requestPath: /api/v5/public/price-limit?instId=BTC-USDT (no host, query included)
// body: json string (empty if none)
func (s *Signer) GenerateHeaders(method, requestPath, body string) map[string]string {
	if s == nil {
		return nil
	}
	// ISO 8601 with milliseconds, UTC
	timestamp := s.now().UTC().Format("2006-01-02T15:04:05.000Z")

	payload := timestamp + method + requestPath + body

	return map[string]string{
		"OK-ACCESS-KEY":        s.accessKey,
		"OK-ACCESS-SIGN":       computeHmacSha256(payload, s.secretKey),
		"OK-ACCESS-TIMESTAMP":  timestamp,
		"OK-ACCESS-PASSPHRASE": s.passphrase,
	}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
