// Package config loads blockkit settings from BLOCKKIT_* environment variables.
package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/joshuapare/blockkit/internal/logger"
	"github.com/joshuapare/blockkit/mem/manager"
	"github.com/joshuapare/blockkit/mem/region"
)

const envPrefix = "BLOCKKIT"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds the settings shared by blockctl commands. Flags override it.
type Config struct {
	BlockSize  int     `envconfig:"BLOCK_SIZE" default:"16"`
	BlockCount int     `envconfig:"BLOCK_COUNT" default:"4"`
	Source     string  `envconfig:"SOURCE" default:"heap"`
	Classes    Classes `envconfig:"CLASSES"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"LOG_DIR"`
	LogAlloc bool   `envconfig:"LOG_ALLOC"`
}

// Classes decodes a manager class table such as "16x64,32x32".
type Classes []manager.Class

// Decode implements envconfig.Decoder.
func (c *Classes) Decode(value string) error {
	classes, err := manager.ParseClasses(value)
	if err != nil {
		return err
	}
	*c = classes
	return nil
}

func (c Classes) String() string {
	s := ""
	for i, class := range c {
		if i > 0 {
			s += ","
		}
		s += class.String()
	}
	return s
}

// Load reads the environment on top of the defaults and validates the result.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(envPrefix, &c); err != nil {
		return Config{}, fmt.Errorf("failed to process config env vars: %w", err)
	}
	if len(c.Classes) == 0 {
		c.Classes = Classes(manager.DefaultClasses)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.BlockSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: block size %d", ErrInvalid, c.BlockSize))
	}
	if c.BlockCount <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: block count %d", ErrInvalid, c.BlockCount))
	}
	switch c.Source {
	case region.KindHeap, region.KindMmap:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: source %q", ErrInvalid, c.Source))
	}
	if len(c.Classes) > 0 {
		if _, err := manager.ReservationSize(c.Classes); err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %w", ErrInvalid, err))
		}
	}
	switch level, err := logrus.ParseLevel(c.LogLevel); {
	case err != nil:
		result = multierror.Append(result, fmt.Errorf("%w: %w", ErrInvalid, err))
	case level == logrus.PanicLevel:
		// The logger reads the zero level as unset.
		result = multierror.Append(result, fmt.Errorf("%w: log level %q is not supported, use fatal or above", ErrInvalid, c.LogLevel))
	}
	return result.ErrorOrNil()
}

// LoggerOptions maps the logging settings onto logger.Options.
func (c Config) LoggerOptions(enabled bool) logger.Options {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	return logger.Options{
		Enabled:    enabled,
		LogDir:     c.LogDir,
		Level:      level,
		AllocTrace: c.LogAlloc,
	}
}
