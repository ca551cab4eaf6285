// Package idempotency carries client supplied idempotency keys, so a
// management command repeated with the same key is applied once and a
// notification retried with the same key is deduplicated by its receiver.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
)

const (
	HeaderName     = "Idempotency-Key"
	ReplayedHeader = "Idempotent-Replayed"

	MinKeyLength = 16
	MaxKeyLength = 128

	replayKeyPrefix = "command"
)

type contextKey string

const contextKeyIdempotency contextKey = "idempotencyKey"

var (
	ErrKeyTooShort = errors.New("idempotency key must be at least 16 characters")
	ErrKeyTooLong  = errors.New("idempotency key must not exceed 128 characters")
	ErrKeyInvalid  = errors.New("idempotency key contains invalid characters")

	validKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)
)

func Validate(key string) error {
	switch {
	case len(key) < MinKeyLength:
		return ErrKeyTooShort
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case !validKeyPattern.MatchString(key):
		return ErrKeyInvalid
	}

	return nil
}

// FromRequest returns the key of r. ok is false when the request carries
// none; err is set when it carries an invalid one.
func FromRequest(r *http.Request) (key string, ok bool, err error) {
	key = r.Header.Get(HeaderName)
	if key == "" {
		return "", false, nil
	}

	if err := Validate(key); err != nil {
		return "", true, err
	}

	return key, true, nil
}

// ReplayKey scopes key to one method and path, so the same key sent to two
// different commands never collides.
func ReplayKey(method, path, key string) string {
	hash := sha256.Sum256([]byte(method + ":" + path + ":" + key))

	return replayKeyPrefix + ":" + hex.EncodeToString(hash[:])
}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKeyIdempotency, key)
}

func FromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(contextKeyIdempotency).(string)

	return key, ok && key != ""
}
