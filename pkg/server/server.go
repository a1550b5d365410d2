// Package server runs the plain and TLS listeners over one handler set.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andesco/allorigins/handlers"
	"github.com/andesco/allorigins/pkg/config"
)

const shutdownTimeout = 30 * time.Second

// Server serves one handler set on a plain and an optional TLS listener.
type Server struct {
	handlers *handlers.Handlers
	log      zerolog.Logger
}

// New returns a Server for h logging to log.
func New(h *handlers.Handlers, log zerolog.Logger) *Server {
	return &Server{handlers: h, log: log}
}

// ListenAndServe opens the listeners named in cfg and serves until ctx is
// done. A missing certificate pair only disables the TLS listener.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.Config) error {
	var secure net.Listener
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("error loading certificate pair: %w", err)
		}
		ln, err := net.Listen("tcp", cfg.HTTPSAddr)
		if err != nil {
			return fmt.Errorf("error listening on %s: %w", cfg.HTTPSAddr, err)
		}
		secure = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
	} else {
		s.log.Warn().
			Str("cert", cfg.TLSCert).
			Str("key", cfg.TLSKey).
			Msg("certificate pair not found, TLS listener disabled")
	}

	plain, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		if secure != nil {
			_ = secure.Close()
		}
		return fmt.Errorf("error listening on %s: %w", cfg.HTTPAddr, err)
	}

	return s.Serve(ctx, plain, secure)
}

// Serve runs one fiber app per listener until ctx is done or one of them
// fails, then shuts both down. secure may be nil.
func (s *Server) Serve(ctx context.Context, plain, secure net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	var apps []*fiber.App
	serve := func(ln net.Listener, scheme string) {
		app := s.handlers.App()
		apps = append(apps, app)
		g.Go(func() error {
			s.log.Info().Str("scheme", scheme).Str("addr", ln.Addr().String()).Msg("listening")
			if err := app.Listener(ln); err != nil && gctx.Err() == nil {
				return fmt.Errorf("%s listener: %w", scheme, err)
			}
			return nil
		})
	}

	serve(plain, "http")
	if secure != nil {
		serve(secure, "https")
	}

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, app := range apps {
			if err := app.ShutdownWithContext(sctx); err != nil {
				s.log.Error().Err(err).Msg("shutdown")
			}
		}
		// A listener whose app never got to serve still has to let go.
		_ = plain.Close()
		if secure != nil {
			_ = secure.Close()
		}
		return nil
	})

	return g.Wait()
}
