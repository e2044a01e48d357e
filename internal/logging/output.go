package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jrick/logrotate/rotator"
	"github.com/rs/zerolog"
)

const (
	rotateThresholdKB = 10 * 1024
	rotateMaxRolls    = 3
)

// Output is the writer behind the global logger: stderr, plus an optional
// rotated file.
type Output struct {
	io.Writer
	rot *rotator.Rotator
}

// NewOutput builds the writer described by cfg.
func NewOutput(cfg Config) (*Output, error) {
	return newOutput(cfg, os.Stderr)
}

func newOutput(cfg Config, stderr io.Writer) (*Output, error) {
	var console io.Writer = stderr
	if !cfg.Bypass {
		console = zerolog.ConsoleWriter{
			Out:        stderr,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	if cfg.File == "" {
		return &Output{Writer: console}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	rot, err := rotator.New(cfg.File, rotateThresholdKB, false, rotateMaxRolls)
	if err != nil {
		return nil, fmt.Errorf("logging: open rotator %s: %w", cfg.File, err)
	}
	return &Output{Writer: zerolog.MultiLevelWriter(console, rot), rot: rot}, nil
}

func (o *Output) Close() error {
	if o.rot == nil {
		return nil
	}
	return o.rot.Close()
}
