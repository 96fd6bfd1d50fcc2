package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/peerdrop/relay/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

type Server struct {
	http.Server

	autoCert *autocert.Manager
	opts     Options
	log      *logger.Logger
}

// NewServer creates an HTTP(S) server around the handler builder fn.
// The handler is built lazily so it can reference the server itself.
func NewServer(address string, handler func(*Server) http.Handler, options ...Option) (*Server, error) {
	opts := &Options{
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	opts.override(options...)
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:         address,
			IdleTimeout:  opts.IdleTimeout,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
		opts: *opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	if opts.Https && opts.IsAutoHttpsCert() {
		server.autoCert = &autocert.Manager{
			Prompt: autocert.AcceptTOS,
			Cache:  autocert.DirCache("assets/cache"),
		}
		if opts.HttpsDomain != "" {
			server.autoCert.HostPolicy = autocert.HostWhitelist(opts.HttpsDomain)
		}
		server.TLSConfig = &tls.Config{GetCertificate: server.autoCert.GetCertificate}
	}

	return server, nil
}

func (s *Server) Run() error {
	protocol := s.GetProtocol()
	s.log.Info().Msgf("Starting %s server on %s", protocol, s.Addr)

	var err error
	if s.opts.Https {
		err = s.ListenAndServeTLS(s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.log.Debug().Msgf("%s server was closed", protocol)
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error { return s.Server.Shutdown(ctx) }

func (s *Server) GetProtocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}
