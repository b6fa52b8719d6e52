package social

import (
	"context"

	"github.com/google/uuid"

	"github.com/teedineasyteam-boop/teedin-identity/internal/http/state"
	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
)

// StartDeps wires the start service.
type StartDeps struct {
	Registry *oauth.Registry
	Signer   *state.Signer
}

type startService struct {
	registry *oauth.Registry
	signer   *state.Signer
}

// NewStartService creates the initiation service.
func NewStartService(d StartDeps) StartService {
	return &startService{registry: d.Registry, signer: d.Signer}
}

// Start mints a state token and builds the provider authorization URL. The
// state nonce doubles as the OIDC nonce so the later ID-token verification
// is bound to this exact round trip.
func (s *startService) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("social.start"))

	ex, err := s.registry.Get(req.Provider)
	if err != nil {
		return nil, ErrNotConfigured
	}

	nonce := uuid.NewString()
	tok, err := s.signer.Sign(state.Claims{
		Provider:    string(req.Provider),
		Nonce:       nonce,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		log.Error("state signing failed", logger.Err(err))
		return nil, err
	}

	authURL, err := ex.AuthURL(ctx, tok, nonce)
	if err != nil {
		log.Error("authorization url build failed", logger.Err(err))
		return nil, err
	}
	return &StartResult{AuthURL: authURL, StateToken: tok}, nil
}
