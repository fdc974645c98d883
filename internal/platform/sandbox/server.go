// Package sandbox is an in-memory staff backend that speaks the same
// envelope, pagination and auth contract as the hospital API. It serves
// seeded data so the portal can be demonstrated and tested end to end.
package sandbox

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hospital/staffportal/internal/platform/auth"
	"github.com/hospital/staffportal/internal/platform/middleware"
)

// Config configures the sandbox server.
type Config struct {
	SigningKey     string
	TokenTTL       time.Duration
	RefreshTTL     time.Duration
	RequestTimeout time.Duration
	BodyLimit      string
	AllowOrigins   []string
	LoginRateLimit middleware.RateLimitConfig
	Seed           SeedConfig
}

func DefaultConfig() Config {
	return Config{
		TokenTTL:       15 * time.Minute,
		RefreshTTL:     24 * time.Hour,
		RequestTimeout: 30 * time.Second,
		BodyLimit:      "1M",
		AllowOrigins:   []string{"*"},
		LoginRateLimit: middleware.DefaultLoginRateLimit(),
		Seed:           DefaultSeedConfig(),
	}
}

// Server is the sandbox backend.
type Server struct {
	cfg    Config
	echo   *echo.Echo
	store  *Store
	tokens *issuer
	seeds  *SeedHandler
	logger zerolog.Logger
}

// New seeds the dataset and builds the router.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	if len(cfg.SigningKey) < 16 {
		return nil, errors.New("sandbox signing key must be at least 16 bytes")
	}
	def := DefaultConfig()
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = def.RefreshTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = def.BodyLimit
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = def.AllowOrigins
	}
	if cfg.LoginRateLimit.RequestsPerSecond <= 0 {
		cfg.LoginRateLimit = def.LoginRateLimit
	}

	seeder := NewSeeder(cfg.Seed)
	d, res, err := seeder.build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		store:  newStore(d),
		tokens: newIssuer(cfg.SigningKey, cfg.TokenTTL, cfg.RefreshTTL),
		logger: logger,
	}
	s.seeds = NewSeedHandler(s.store, seeder.Config())

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Handlers run on the timeout goroutine, so recovery sits inside it.
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	s.echo = e
	s.routes()

	logger.Info().
		Int64("seed", res.Seed).
		Int("cabinets", res.Cabinets).
		Int("orders", res.Orders).
		Int("invoices", res.Invoices).
		Int("transactions", res.Transactions).
		Msg("sandbox data seeded")
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return success(c, map[string]string{"status": "UP"})
	})

	limiter := middleware.RateLimit(s.cfg.LoginRateLimit)
	for _, realm := range auth.Realms {
		base := "/api/v1/" + string(realm)

		ag := s.echo.Group(base + "/auth")
		ag.POST("/login", s.login(realm), limiter)
		ag.POST("/refresh", s.refresh(realm), limiter)
		ag.POST("/logout", s.logout, s.requireRealm(realm))

		g := s.echo.Group(base, s.requireRealm(realm))
		switch realm {
		case auth.RealmPharmacist:
			s.registerPharmacy(g)
		case auth.RealmFinance:
			s.registerFinance(g)
		}
	}

	s.seeds.RegisterRoutes(s.echo.Group("/sandbox"))
}

// Handler returns the router, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Seed replaces the dataset with a freshly generated one.
func (s *Server) Seed(cfg SeedConfig) (*SeedResult, error) {
	return s.seeds.reseed(cfg)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("sandbox listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
