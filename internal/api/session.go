package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	sessionName = "parcelboard"
	ownerKey    = "owner_id"
)

// SystemOwner owns the layouts seeded from the templates directory. It is
// never assigned to a session, so template layouts stay read-only for
// every caller.
const SystemOwner = "system"

type ownerCtxKey struct{}

// withOwner establishes the caller's owner identity: an opaque uuid minted
// on first contact and carried in the session cookie from then on.
func (s *Server) withOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionStore.Get(r, sessionName)
		if err != nil {
			// A stale or tampered cookie gets a fresh identity.
			session, _ = s.sessionStore.New(r, sessionName)
		}

		owner, _ := session.Values[ownerKey].(string)
		if owner == "" || owner == SystemOwner {
			owner = uuid.New().String()
			session.Values[ownerKey] = owner
			if err := session.Save(r, w); err != nil {
				s.logger.Error("failed to save session", "error", err)
			}
		}

		ctx := context.WithValue(r.Context(), ownerCtxKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerID returns the caller identity established by withOwner.
func ownerID(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}
