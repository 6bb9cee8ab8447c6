// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package token signs and verifies one-click feedback tokens.
//
// A token is "<payload>.<signature>" where payload is the unpadded
// URL-safe base64 of the canonical JSON claims and signature is the
// unpadded URL-safe base64 of HMAC-SHA256(secret, payload).
//
// Implements: docs/ARCHITECTURE § Token Codec.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/feedback-engine/internal/ident"
	"github.com/pdiddy/feedback-engine/pkg/types"
)

// Verification failures. Each is distinguishable with errors.Is so operators
// can tell misuse (format, signature) apart from staleness (expiry).
var (
	ErrFormat        = errors.New("malformed token")
	ErrSignature     = errors.New("token signature mismatch")
	ErrLabel         = errors.New("token label not allowed")
	ErrMissingFields = errors.New("token missing required claims")
	ErrInvalidClaims = errors.New("token claims invalid")
	ErrExpired       = errors.New("token expired")
	ErrNoSecret      = errors.New("signing secret is empty")
)

var encoding = base64.RawURLEncoding.Strict()

// now is the verification clock. Tests override it.
var now = time.Now

// Sign encodes claims and signs them with secret.
func Sign(claims types.TokenClaims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	if claims.Version == "" {
		claims.Version = types.FormatVersion
	}
	// Struct fields are declared in key order, so this encoding is canonical.
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("encoding claims: %w", err)
	}
	return SignBytes(raw, secret), nil
}

// SignBytes signs an opaque claim payload.
func SignBytes(payload, secret []byte) string {
	encoded := encoding.EncodeToString(payload)
	return encoded + "." + encoding.EncodeToString(mac(encoded, secret))
}

// VerifyBytes checks the token signature and returns the decoded payload.
func VerifyBytes(token string, secret []byte) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	payload, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || payload == "" || sig == "" || strings.Contains(sig, ".") {
		return nil, ErrFormat
	}
	got, err := encoding.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding", ErrFormat)
	}
	if !hmac.Equal(got, mac(payload, secret)) {
		return nil, ErrSignature
	}
	raw, err := encoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload encoding", ErrFormat)
	}
	return raw, nil
}

// Verify checks the token against secret and returns its claims. The label
// must be allowed, run_id and item_id must be present, and exp must be
// strictly in the future.
func Verify(token string, secret []byte) (types.TokenClaims, error) {
	raw, err := VerifyBytes(token, secret)
	if err != nil {
		return types.TokenClaims{}, err
	}

	var claims types.TokenClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return types.TokenClaims{}, fmt.Errorf("%w: payload is not a claims object", ErrFormat)
	}

	label, ok := types.ParseLabel(string(claims.Label))
	if !ok {
		return types.TokenClaims{}, fmt.Errorf("%w: %q", ErrLabel, claims.Label)
	}
	claims.Label = label

	claims.RunID = strings.TrimSpace(claims.RunID)
	claims.ItemID = strings.TrimSpace(claims.ItemID)
	if claims.RunID == "" || claims.ItemID == "" || strings.TrimSpace(claims.Exp) == "" {
		return types.TokenClaims{}, ErrMissingFields
	}

	exp, ok := ident.ParseTime(claims.Exp)
	if !ok {
		return types.TokenClaims{}, fmt.Errorf("%w: unparsable exp %q", ErrInvalidClaims, claims.Exp)
	}
	if !exp.After(now().UTC()) {
		return types.TokenClaims{}, fmt.Errorf("%w at %s", ErrExpired, ident.FormatTime(exp))
	}
	return claims, nil
}

// Expiry returns the exp claim value for a token issued at issued with ttl.
func Expiry(issued time.Time, ttl time.Duration) string {
	return ident.FormatTime(issued.Add(ttl))
}

func mac(payload string, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	return h.Sum(nil)
}
