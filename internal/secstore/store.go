// Package secstore persists the driver's credentials in an opaque
// key-value store: an encrypted file on disk in production, an
// in-memory map in tests.
package secstore

import "errors"

// Fixed storage keys. The gateway client owns token and refresh_token;
// the session manager owns user.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("secstore: key not found")

// Store abstracts secure key-value persistence for credentials.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
