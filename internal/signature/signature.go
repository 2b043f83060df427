// Package signature verifies HMAC-SHA256 signatures of raw webhook bodies.
//
// Each peer gets its own Verifier: the storefront signs with base64, the
// automation engine with hex.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMissingSignature    = errors.New("assinatura ausente")
	ErrInvalidSignature    = errors.New("assinatura inválida")
	ErrSecretNotConfigured = errors.New("segredo HMAC não configurado")
)

type Encoding int

const (
	Hex Encoding = iota
	Base64
)

func (e Encoding) encode(sum []byte) string {
	if e == Base64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

func (e Encoding) decode(s string) ([]byte, error) {
	if e == Base64 {
		return base64.StdEncoding.DecodeString(s)
	}
	return hex.DecodeString(s)
}

type Verifier struct {
	Name   string
	Secret []byte
	Header string
	Enc    Encoding
	// AllowUnsigned lets requests through when no secret is configured.
	// With a secret set it has no effect.
	AllowUnsigned bool
}

func (v *Verifier) Configured() bool {
	return len(v.Secret) > 0
}

func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	return v.Enc.encode(mac.Sum(nil))
}

// Verify checks claimed against the HMAC of body. A nil error with an
// unconfigured secret means AllowUnsigned was set.
func (v *Verifier) Verify(body []byte, claimed string) error {
	if !v.Configured() {
		if v.AllowUnsigned {
			return nil
		}
		return ErrSecretNotConfigured
	}
	claimed = strings.TrimSpace(claimed)
	if claimed == "" {
		return ErrMissingSignature
	}
	got, err := v.Enc.decode(claimed)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
