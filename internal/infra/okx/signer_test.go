package okx

import (
	"testing"
	"time"
)

func TestSigner_GenerateHeaders(t *testing.T) {
	signer := NewSigner("key", "secret", "pass")
	signer.now = func() time.Time { return time.Date(2020, 12, 8, 9, 8, 57, 715_000_000, time.UTC) }

	headers := signer.GenerateHeaders("GET", "/api/v5/public/price-limit?instId=BTC-USDT", "")

	if headers["OK-ACCESS-KEY"] != "key" {
		t.Errorf("Expected OK-ACCESS-KEY to be 'key', got %s", headers["OK-ACCESS-KEY"])
	}
	if headers["OK-ACCESS-PASSPHRASE"] != "pass" {
		t.Errorf("Expected OK-ACCESS-PASSPHRASE to be 'pass', got %s", headers["OK-ACCESS-PASSPHRASE"])
	}
	if headers["OK-ACCESS-TIMESTAMP"] != "2020-12-08T09:08:57.715Z" {
		t.Errorf("Unexpected timestamp %s", headers["OK-ACCESS-TIMESTAMP"])
	}

	want := computeHmacSha256("2020-12-08T09:08:57.715ZGET/api/v5/public/price-limit?instId=BTC-USDT", "secret")
	if headers["OK-ACCESS-SIGN"] != want {
		t.Errorf("Signature mismatch: got %s want %s", headers["OK-ACCESS-SIGN"], want)
	}
}

func TestSigner_NoCredentials(t *testing.T) {
	signer := NewSigner("", "", "")
	if signer != nil {
		t.Fatal("expected nil signer without credentials")
	}
	if h := signer.GenerateHeaders("GET", "/", ""); h != nil {
		t.Errorf("nil signer should produce no headers, got %v", h)
	}
}

func TestComputeHmacSha256(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	// Hex: f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8
	expected := "97yD9DBThCSxMpjmqm+xQ+9NWaFJRhdZl0edvC0aPNg="
	result := computeHmacSha256("The quick brown fox jumps over the lazy dog", "key")

	if result != expected {
		t.Errorf("HMAC Mismatch. Expected %s, got %s", expected, result)
	}
}
