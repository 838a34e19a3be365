// Package logging builds the framework's *zap.Logger from configuration.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-spiral/framework/config"
	"github.com/km-arc/go-spiral/framework/errs"
)

// New returns a production (JSON) logger, or a development (console)
// logger when cfg.Format is "console" or env is "local". cfg.Level sets the
// minimum enabled level.
func New(cfg config.LogConfig, env string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, errs.Wrap(errs.Config, "logging.New", cfg.Level, err)
		}
	}

	var zc zap.Config
	if cfg.Format == "console" || (cfg.Format == "" && env == "local") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, errs.Wrap(errs.Config, "logging.New", "", err)
	}
	return logger.With(zap.String("env", env)), nil
}
