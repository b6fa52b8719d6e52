package social

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	"github.com/teedineasyteam-boop/teedin-identity/internal/http/state"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/metrics"
	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// CallbackDeps wires the callback service.
type CallbackDeps struct {
	Registry *oauth.Registry
	Signer   *state.Signer
	Dir      directory.Directory
}

type callbackService struct {
	registry *oauth.Registry
	signer   *state.Signer
	dir      directory.Directory
}

// NewCallbackService creates the callback flow service.
func NewCallbackService(d CallbackDeps) CallbackService {
	return &callbackService{registry: d.Registry, signer: d.Signer, dir: d.Dir}
}

// Callback runs the flow. Ordering is load-bearing: the CSRF check rejects
// before any network call, and the provider lock rejects before any
// directory mutation.
func (s *callbackService) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("social.callback"),
		logger.Provider(string(req.Provider)),
	)

	if req.State == "" {
		return nil, ErrMissingState
	}
	if req.CookieState == "" || req.State != req.CookieState {
		log.Warn("state nonce mismatch")
		return nil, ErrCsrfRejected
	}
	stc, err := s.signer.Parse(req.State)
	if err != nil {
		log.Warn("state token rejected", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrCsrfRejected, err)
	}
	if !strings.EqualFold(stc.Provider, string(req.Provider)) {
		log.Warn("state bound to a different provider")
		return nil, ErrCsrfRejected
	}

	if req.Code == "" {
		return nil, ErrMissingCode
	}

	ex, err := s.registry.Get(req.Provider)
	if err != nil {
		log.Error("provider credentials missing")
		return nil, ErrNotConfigured
	}

	start := time.Now()
	tokens, err := ex.ExchangeCode(ctx, req.Code)
	metrics.ExchangeDuration.WithLabelValues(string(req.Provider)).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("code exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	claims, err := ex.VerifyIDToken(ctx, tokens.IDToken, stc.Nonce)
	if err != nil {
		log.Error("id token verification failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}

	email := claims.Email
	if email == "" {
		// the subject asserted no email; the unique-email invariant still
		// has to hold per subject
		email = identity.PlaceholderEmail(req.Provider, claims.Sub)
		log.Info("no email asserted, placeholder synthesized", logger.UserID(claims.Sub))
	}

	name, picture := claims.Name, claims.Picture
	if en, ok := ex.(oauth.Enricher); ok {
		if p, err := en.Profile(ctx, tokens.AccessToken); err == nil {
			if p.Name != "" {
				name = p.Name
			}
			if p.Picture != "" {
				picture = p.Picture
			}
		} else {
			// enrichment is best effort only
			log.Debug("profile enrichment failed", logger.Err(err))
		}
	}

	rec, err := s.dir.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.reconcileExisting(ctx, rec, req.Provider, claims, email, name, picture)
	case errors.Is(err, directory.ErrNotFound):
		return s.provision(ctx, req.Provider, claims, email, name, picture)
	default:
		log.Error("directory lookup failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
	}
}

// reconcileExisting applies the provider lock to a directory hit. The
// resolver runs against the authoritative external-identity record, never
// the directory row.
func (s *callbackService) reconcileExisting(ctx context.Context, rec *identity.Identity, p identity.Provider, claims *oauth.Claims, email, name, picture string) (*CallbackResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.callback"))

	auth, err := s.dir.AuthRecord(ctx, rec.ID)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
	}
	canonical := identity.ResolveProvider(auth)

	if (canonical == identity.ProviderGoogle || canonical == identity.ProviderLine) && canonical != p {
		metrics.ProviderMismatchTotal.WithLabelValues(string(canonical)).Inc()
		metrics.SigninTotal.WithLabelValues(string(p), "mismatch").Inc()
		log.Warn("provider lock rejected sign-in",
			logger.Provider(string(p)),
			logger.EmailMasked(email),
			logger.Role(string(rec.Role)),
		)
		return nil, &MismatchError{Required: canonical, Email: email}
	}

	// same provider, or an email-first account enriched with linked SSO
	if claims.Sub != "" {
		if err := s.dir.LinkIdentity(ctx, rec.ID, identity.LinkedIdentity{
			Provider:  p,
			SubjectID: claims.Sub,
			Email:     email,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
		}
	}

	metrics.SigninTotal.WithLabelValues(string(p), "returning").Inc()
	return &CallbackResult{
		UserID:   rec.ID,
		Provider: p,
		Email:    email,
		Name:     name,
		Picture:  picture,
	}, nil
}

// provision creates identity + profile for a first-time signup. A
// unique-email violation means someone else finished first; re-read and
// reconcile as a returning account instead of failing.
func (s *callbackService) provision(ctx context.Context, p identity.Provider, claims *oauth.Claims, email, name, picture string) (*CallbackResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.callback"))

	first, last := identity.SplitName(name)
	rec, err := s.dir.Insert(ctx, directory.NewIdentity{
		Email:     email,
		Role:      identity.RoleCustomer,
		FirstName: first,
		LastName:  last,
	})
	if errors.Is(err, directory.ErrDuplicateEmail) {
		metrics.DuplicateRaceRecovered.Inc()
		log.Info("duplicate signup converged", logger.EmailMasked(email))
		existing, gerr := s.dir.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, gerr)
		}
		return s.reconcileExisting(ctx, existing, p, claims, email, name, picture)
	}
	if err != nil {
		log.Error("identity insert failed", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
	}

	if claims.Sub != "" {
		if err := s.dir.LinkIdentity(ctx, rec.ID, identity.LinkedIdentity{
			Provider:  p,
			SubjectID: claims.Sub,
			Email:     email,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
		}
	}
	if err := s.dir.CreateProfile(ctx, identity.Profile{
		UserID:      rec.ID,
		Role:        identity.RoleCustomer,
		DisplayName: name,
		AvatarURL:   picture,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryWrite, err)
	}

	metrics.SigninTotal.WithLabelValues(string(p), "signup").Inc()
	log.Info("identity provisioned",
		logger.Provider(string(p)),
		logger.UserID(rec.ID),
		logger.EmailMasked(email),
	)
	return &CallbackResult{
		UserID:    rec.ID,
		Provider:  p,
		Email:     email,
		Name:      name,
		Picture:   picture,
		IsNewUser: true,
	}, nil
}
