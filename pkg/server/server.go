package server

import (
	"context"
	"fmt"

	"github.com/peerdrop/relay/pkg/logger"
)

type Service interface {
	Run()
	Shutdown(ctx context.Context) error
}

type RunnableService interface {
	Service
	fmt.Stringer
}

type Services []RunnableService

func (s Services) AddIf(cond bool, services ...RunnableService) Services {
	if cond {
		return append(s, services...)
	}
	return s
}

func (s Services) Start() {
	for _, s := range s {
		s.Run()
	}
}

func (s Services) Shutdown(ctx context.Context, log *logger.Logger) {
	for _, s := range s {
		if err := s.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msgf("service %s has failed to shut down", s)
		}
	}
}
