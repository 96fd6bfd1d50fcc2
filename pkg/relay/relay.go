// Package relay ties the session store, the rate limiter, and the
// websocket hub into one runnable signaling service.
package relay

import (
	"context"
	"net/http"

	"github.com/peerdrop/relay/pkg/config"
	"github.com/peerdrop/relay/pkg/logger"
	"github.com/peerdrop/relay/pkg/monitoring"
	"github.com/peerdrop/relay/pkg/network/httpx"
	"github.com/peerdrop/relay/pkg/ratelimit"
	"github.com/peerdrop/relay/pkg/server"
	"github.com/peerdrop/relay/pkg/session"
)

type Relay struct {
	log      *logger.Logger
	hub      *Hub
	limiter  *ratelimit.Limiter
	services server.Services
}

func New(conf config.RelayConfig, version string, log *logger.Logger) (*Relay, error) {
	store := session.NewStore(conf.Session)
	limiter := ratelimit.NewLimiter(conf.RateLimit)
	hub := NewHub(store, limiter, log)
	registerMetrics(store)

	srvConf := conf.Relay.Server
	opts := []httpx.Option{httpx.WithLogger(log)}
	if srvConf.Https {
		opts = append(opts, httpx.WithTLS(srvConf.Tls.HttpsCert, srvConf.Tls.HttpsKey, srvConf.Tls.Domain))
	}
	httpSrv, err := httpx.NewServer(
		srvConf.GetAddr(),
		func(_ *httpx.Server) http.Handler {
			h := http.NewServeMux()
			h.HandleFunc("/ws", hub.handleUserConnection)
			h.HandleFunc("/sessions", hub.handleCreateSession)
			h.HandleFunc("/sessions/", hub.handleSessionInfo)
			h.HandleFunc("/info", handleInfo(version))
			return h
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	services := server.Services{
		&httpService{httpSrv, log},
		session.NewSweeper(store, conf.Session.SweepInterval, log),
	}
	services = services.AddIf(conf.Relay.Monitoring.IsEnabled(), monitoring.New(conf.Relay.Monitoring, log))

	return &Relay{log: log, hub: hub, limiter: limiter, services: services}, nil
}

func (r *Relay) Start() { r.services.Start() }

func (r *Relay) Shutdown(ctx context.Context) error {
	r.hub.Close()
	r.services.Shutdown(ctx, r.log)
	r.limiter.Close()
	return nil
}

// httpService adapts the blocking httpx server to the service list.
type httpService struct {
	*httpx.Server
	log *logger.Logger
}

func (s *httpService) Run() {
	go func() {
		if err := s.Server.Run(); err != nil {
			s.log.Fatal().Err(err).Msg("http server fail")
		}
	}()
}

func (s *httpService) String() string { return "http::" + s.Addr }
