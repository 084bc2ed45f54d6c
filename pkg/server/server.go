package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"extblock/pkg/dnsbl"
	"extblock/pkg/handler"
	"extblock/pkg/registry"
	"extblock/pkg/version"
)

// Options configures a Server.
type Options struct {
	Listen         string
	AllowedOrigins []string
	Language       language.Tag
	DNSBL          *dnsbl.Options
}

// Server owns the HTTP listener and the optional DNSBL responder.
type Server struct {
	http  *http.Server
	dnsbl *dnsbl.Server
	log   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	group    *errgroup.Group
}

// New wires the HTTP handlers and, when opts.DNSBL is set, the DNSBL
// responder around reg.
func New(opts Options, reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(reg, opts.Language, log)
	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{handler.RequestIDHeader},
		AllowCredentials: true,
	})

	var root http.Handler = h.Routes()
	root = c.Handler(root)
	root = handler.AccessLog(log, root)
	root = handler.WithRequestID(root)

	s := &Server{
		http: &http.Server{
			Addr:              opts.Listen,
			Handler:           root,
			ReadHeaderTimeout: 5 * time.Second,
			ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		},
		log: log,
	}

	if opts.DNSBL != nil {
		dnsOpts := *opts.DNSBL
		dnsOpts.Checker = reg
		dnsOpts.Log = log
		s.dnsbl = dnsbl.New(dnsOpts)
	}
	return s
}

// Start binds the listeners and serves in the background. Use Wait to learn
// about serve failures after Start has returned.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}

	group := new(errgroup.Group)
	s.mu.Lock()
	s.listener = ln
	s.group = group
	s.mu.Unlock()

	s.log.Info("starting HTTP server", "version", version.String(), "address", ln.Addr().String())
	group.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if s.dnsbl != nil {
		errCh, err := s.dnsbl.Start(ctx)
		if err != nil {
			_ = s.http.Close()
			return err
		}
		group.Go(func() error {
			if err, ok := <-errCh; ok {
				return fmt.Errorf("serve dnsbl: %w", err)
			}
			return nil
		})
	}
	return nil
}

// Wait blocks until every listener has stopped and returns the first serve
// error.
func (s *Server) Wait() error {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return nil
	}
	return group.Wait()
}

// Addr returns the bound HTTP address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

// DNSBLAddr returns the bound DNSBL address, or "" when disabled.
func (s *Server) DNSBLAddr() string {
	if s.dnsbl == nil {
		return ""
	}
	return s.dnsbl.Addr()
}

// Shutdown gracefully stops HTTP and DNSBL.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http: %w", err))
	}
	if s.dnsbl != nil {
		if err := s.dnsbl.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown dnsbl: %w", err))
		}
	}
	return errors.Join(errs...)
}
