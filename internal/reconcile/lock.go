package reconcile

import (
	"context"
	"errors"

	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

// checkProviderLock compares the session's asserted provider against the
// account's canonical provider, resolved from the authoritative external-
// identity record. It runs before any directory mutation and before the
// flow may finish.
//
// Rules:
//   - canonical google requires an asserted google session
//   - canonical line requires an asserted line session; bridged sessions
//     carry the explicit "line" tag, so no transient exception is needed
//   - canonical email permits any provider (email-first accounts may be
//     supplemented with linked SSO)
//
// An account unknown to the directory passes: there is nothing locked yet.
func (c *Controller) checkProviderLock(ctx context.Context, s *session.Session) (required identity.Provider, ok bool, err error) {
	auth, err := c.dir.AuthRecord(ctx, s.UserID)
	if errors.Is(err, directory.ErrNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	canonical := identity.ResolveProvider(auth)
	switch canonical {
	case identity.ProviderGoogle:
		if s.Provider != identity.ProviderGoogle {
			return identity.ProviderGoogle, false, nil
		}
	case identity.ProviderLine:
		if s.Provider != identity.ProviderLine {
			return identity.ProviderLine, false, nil
		}
	}
	return "", true, nil
}
