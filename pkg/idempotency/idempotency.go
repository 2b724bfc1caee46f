package idempotency

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const Header = "Idempotency-Key"

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Stamp sets a fresh key on an outbound request unless one is present.
func Stamp(r *http.Request) string {
	if k := Key(r); k != "" {
		return k
	}
	k := uuid.NewString()
	r.Header.Set(Header, k)
	return k
}
