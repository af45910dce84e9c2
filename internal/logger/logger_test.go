package logger

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNewLoggerDoesNotPanicOnStack(t *testing.T) {
	log := New("test-service")
	log.Info().Msg("plain message")
	log.Error().Stack().Err(errors.New("wrapped")).Msg("error with stack")
}
