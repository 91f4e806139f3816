// Package auth authenticates callers of the offline cache control endpoints.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	frontpage "github.com/eugener/frontpage/internal"
)

// MinKeyLength is the shortest admin key accepted.
const MinKeyLength = 16

// AdminKeyAuth accepts requests carrying one of the configured admin keys as
// a Bearer token. Keys are held only as SHA-256 digests.
type AdminKeyAuth struct {
	digests [][sha256.Size]byte
}

// NewAdminKeyAuth returns an AdminKeyAuth for keys. With no keys every
// request is rejected.
func NewAdminKeyAuth(keys []string) (*AdminKeyAuth, error) {
	a := &AdminKeyAuth{digests: make([][sha256.Size]byte, 0, len(keys))}
	for i, k := range keys {
		if len(k) < MinKeyLength {
			return nil, fmt.Errorf("admin key %d: shorter than %d characters", i, MinKeyLength)
		}
		a.digests = append(a.digests, sha256.Sum256([]byte(k)))
	}
	return a, nil
}

// Enabled reports whether any key is configured.
func (a *AdminKeyAuth) Enabled() bool { return len(a.digests) > 0 }

// Authenticate checks the Bearer token in the Authorization header. Every
// configured digest is compared so the time taken does not depend on which
// key matched.
func (a *AdminKeyAuth) Authenticate(_ context.Context, r *http.Request) error {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return frontpage.ErrUnauthorized
	}

	got := sha256.Sum256([]byte(raw))
	match := 0
	for _, d := range a.digests {
		match |= subtle.ConstantTimeCompare(got[:], d[:])
	}
	if match != 1 {
		return frontpage.ErrUnauthorized
	}
	return nil
}
