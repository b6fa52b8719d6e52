package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teedineasyteam-boop/teedin-identity/internal/bridge"
	"github.com/teedineasyteam-boop/teedin-identity/internal/cache"
	"github.com/teedineasyteam-boop/teedin-identity/internal/config"
	"github.com/teedineasyteam-boop/teedin-identity/internal/directory"
	httpserver "github.com/teedineasyteam-boop/teedin-identity/internal/http"
	bridgectrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/bridge"
	healthctrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/health"
	socialctrl "github.com/teedineasyteam-boop/teedin-identity/internal/http/controllers/social"
	"github.com/teedineasyteam-boop/teedin-identity/internal/http/router"
	socialsvc "github.com/teedineasyteam-boop/teedin-identity/internal/http/services/social"
	"github.com/teedineasyteam-boop/teedin-identity/internal/http/state"
	"github.com/teedineasyteam-boop/teedin-identity/internal/identity"
	"github.com/teedineasyteam-boop/teedin-identity/internal/metrics"
	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth"
	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth/google"
	"github.com/teedineasyteam-boop/teedin-identity/internal/oauth/line"
	"github.com/teedineasyteam-boop/teedin-identity/internal/observability/logger"
	"github.com/teedineasyteam-boop/teedin-identity/internal/rate"
	"github.com/teedineasyteam-boop/teedin-identity/internal/session"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		// logger is not up yet; stderr is all we have
		os.Stderr.WriteString("fatal: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "teedin-identity",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	_ = metrics.Register(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Driver,
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		log.Fatal("cache init failed", logger.Err(err))
	}
	defer func() { _ = c.Close() }()

	if cfg.Directory.Migrate {
		if err := directory.Migrate(ctx, cfg.Directory.DSN); err != nil {
			log.Fatal("migrations failed", logger.Err(err))
		}
		log.Info("schema migrations applied")
	}

	pools := directory.NewManager()
	defer pools.CloseAll()

	dir, err := pools.Get(ctx, cfg.Directory.DSN)
	if err != nil {
		log.Fatal("directory connect failed", logger.Err(err))
	}

	registry := oauth.NewRegistry()
	if cfg.GoogleConfigured() {
		g := cfg.Providers.Google
		registry.Register(identity.ProviderGoogle, google.New(g.ClientID, g.ClientSecret, g.RedirectURL))
	}
	if cfg.LineConfigured() {
		l := cfg.Providers.Line
		registry.Register(identity.ProviderLine, line.New(l.ChannelID, l.ChannelSecret, l.RedirectURL))
	}
	log.Info("providers configured", zap.String("providers", providerList(registry)))

	signer := state.NewSigner(cfg.Session.Issuer, []byte(cfg.State.Secret), cfg.State.TTL)
	sessions := session.NewManager(session.Config{
		Issuer:     cfg.Session.Issuer,
		Secret:     []byte(cfg.Session.Secret),
		AccessTTL:  cfg.Session.AccessTTL,
		RefreshTTL: cfg.Session.RefreshTTL,
	}, c)
	br := bridge.New(c, cfg.Bridge.TTL)

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if cfg.Cache.Driver == "redis" {
			limiter = rate.NewRedisLimiter(rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Addr,
				Password: cfg.Cache.Password,
				DB:       cfg.Cache.DB,
			}), cfg.Cache.Prefix+":rate", cfg.Rate.Max, cfg.Rate.Window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Max, cfg.Rate.Window)
		}
	}

	callbackSvc := socialsvc.NewCallbackService(socialsvc.CallbackDeps{
		Registry: registry,
		Signer:   signer,
		Dir:      dir,
	})
	startSvc := socialsvc.NewStartService(socialsvc.StartDeps{
		Registry: registry,
		Signer:   signer,
	})

	handler := router.New(router.Deps{
		Start:     socialctrl.NewStartController(startSvc, signer, cfg.Server.AppCallbackURL, cfg.Server.SecureCookies),
		Callback:  socialctrl.NewCallbackController(callbackSvc, signer, cfg.Server.AppCallbackURL, cfg.Server.SecureCookies),
		Providers: socialctrl.NewProvidersController(registry),
		Bridge: bridgectrl.NewController(bridgectrl.Deps{
			Bridge:        br,
			Dir:           dir,
			Sessions:      sessions,
			PublicBaseURL: cfg.Server.PublicBaseURL,
			HomeURL:       cfg.Server.HomeURL,
			SecureCookies: cfg.Server.SecureCookies,
		}),
		Health: healthctrl.NewController(map[string]healthctrl.Pinger{
			"directory": dir,
			"cache":     c,
		}),
		Limiter: limiter,
	})

	srv := httpserver.NewServer(cfg.Server.Addr, handler)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal("http server failed", logger.Err(err))
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown incomplete", logger.Err(err))
		}
	}
}

func providerList(r *oauth.Registry) string {
	s := ""
	for _, p := range r.Configured() {
		if s != "" {
			s += ","
		}
		s += string(p)
	}
	if s == "" {
		s = "none"
	}
	return s
}
