// Package contentlock implements the content-addressed lock used to decide
// which articles changed between runs.
package contentlock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptyBody rejects hashing an article with no content. An empty body this
// deep in the pipeline means upstream corruption, not a legitimate article.
var ErrEmptyBody = errors.New("empty article body")

// Lock maps article IDs to the content hash recorded at the last successful
// sync. The zero-length lock is the cold-start state.
type Lock map[int64]string

// Hash returns the lowercase hex SHA-256 of the body's UTF-8 bytes.
func Hash(body string) (string, error) {
	if body == "" {
		return "", ErrEmptyBody
	}
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:]), nil
}
