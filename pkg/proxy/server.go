package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// Default server limits.
const (
	DefaultListenAddress   = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 2 * time.Minute
	DefaultBodyLimit       = "1M"
	DefaultShutdownTimeout = 5 * time.Second
)

// requestIDHeader carries the per-request identifier.
const requestIDHeader = "X-Request-ID"

// Config configures the HTTP server.
type Config struct {
	// ListenAddress is the host:port to bind. Default ":8080".
	ListenAddress string `json:"listen_address" yaml:"listen_address" env:"PROXY_LISTEN_ADDRESS"`

	// ReadTimeout bounds reading the request. Default 30s.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" env:"PROXY_READ_TIMEOUT"`

	// WriteTimeout bounds writing the response. Streaming completions
	// can run long, so the default is 5m.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"PROXY_WRITE_TIMEOUT"`

	// IdleTimeout bounds keep-alive connections. Default 2m.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" env:"PROXY_IDLE_TIMEOUT"`

	// BodyLimit caps the request body, in echo's size format. Default "1M".
	BodyLimit string `json:"body_limit" yaml:"body_limit" env:"PROXY_BODY_LIMIT"`

	// RequestsPerMinute caps requests per client IP. Zero disables.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" env:"PROXY_REQUESTS_PER_MINUTE"`

	// ShutdownTimeout bounds graceful shutdown. Default 5s.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"PROXY_SHUTDOWN_TIMEOUT"`
}

// FillDefaults replaces zero values with defaults.
func (c *Config) FillDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.BodyLimit == "" {
		c.BodyLimit = DefaultBodyLimit
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Server is the OpenAI-compatible HTTP front for a chat client.
type Server struct {
	config  Config
	client  llm.Client
	echo    *echo.Echo
	limiter *RateLimiter
}

// NewServer creates a server forwarding completions to client. The
// client is typically already wrapped with the live-search middleware.
func NewServer(cfg Config, client llm.Client) *Server {
	cfg.FillDefaults()

	s := &Server{
		config:  cfg,
		client:  client,
		limiter: NewRateLimiter(cfg.RequestsPerMinute),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(s.requestID)
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/models", s.handleModels)

	post := e.Group("", middleware.BodyLimit(cfg.BodyLimit), s.rateLimit)
	post.POST("/v1/chat/completions", s.handleChatCompletion)

	s.echo = e
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start runs the server until ctx is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Handler:      s.echo,
		Addr:         s.config.ListenAddress,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("proxy listening",
		slog.String("address", s.config.ListenAddress),
		slog.String("model", s.client.GetModelInfo().Name))

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.WithMessage(err, "proxy server failed")
	}
	return nil
}

// requestID assigns an identifier to every request and echoes it back.
func (s *Server) requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Response().Header().Set(requestIDHeader, id)
		return next(c)
	}
}

// rateLimit rejects clients above the per-minute budget with the
// OpenAI rate limit error shape.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow(c.RealIP()) {
			return c.JSON(http.StatusTooManyRequests, errorResponse{Error: errorBody{
				Message: "Rate limit reached. Please slow down your requests.",
				Type:    llm.ErrTypeRateLimit,
				Code:    "rate_limit_exceeded",
			}})
		}
		return next(c)
	}
}
