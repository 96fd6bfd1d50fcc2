package main

import (
	"context"
	"time"

	"github.com/peerdrop/relay/pkg/config"
	"github.com/peerdrop/relay/pkg/logger"
	"github.com/peerdrop/relay/pkg/os"
	"github.com/peerdrop/relay/pkg/relay"
)

var Version = "?"

func main() {
	conf := config.NewRelayConfig()
	conf.ParseFlags()

	log := logger.NewConsole(conf.Relay.Debug, "relay", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	r, err := relay.New(conf, Version, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay init fail")
	}
	r.Start()

	<-os.ExpectTermination()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
