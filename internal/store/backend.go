package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound is returned by Read when the object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrConflict is returned by Write when the stored revision no longer
	// matches the one the caller last read.
	ErrConflict = errors.New("revision conflict")
)

// Backend persists whole objects by name. A revision is an opaque token
// identifying the stored version; Write with rev "" creates the object and
// fails with ErrConflict if it already exists.
type Backend interface {
	Read(ctx context.Context, name string) (data []byte, rev string, err error)
	Write(ctx context.Context, name string, data []byte, rev string) (newRev string, err error)
}

func contentRev(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
