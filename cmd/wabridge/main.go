package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/chatwire/wabridge/bridgeservice"
)

func main() {
	if err := bridgeservice.Run(); err != nil {
		log.Error().Err(err).Msg("bridge service exit")
		os.Exit(1)
	}
}
