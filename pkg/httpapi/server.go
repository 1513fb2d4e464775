package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	orchestratorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/agents/orchestrator"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
)

// Config is read with the HTTP prefix.
type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"90s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	Debug           bool          `split_words:"true" default:"false"`
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

// Service is the conversation surface the handlers drive.
type Service interface {
	StartThread(ctx context.Context) (*statex.ConversationThread, error)
	HandleTurn(ctx context.Context, threadID, text, requestID string) (orchestratorx.TurnResult, error)
	Thread(ctx context.Context, threadID string) (*statex.ConversationThread, error)
}

type Server struct {
	cfg    Config
	engine *gin.Engine
}

func NewServer(cfg Config, svc Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("conversation service is required")
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: NewRouter(svc)}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight turns.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Msg("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
