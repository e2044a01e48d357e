package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/btcwire/internal/logging"
)

// InitLogger configures global logging from cfg and returns a logger tagged
// with app. It also becomes the package-level zerolog logger.
func InitLogger(app string, cfg logging.Config) (zerolog.Logger, error) {
	if err := logging.ConfigureWith(cfg); err != nil {
		return zerolog.Nop(), err
	}
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}
