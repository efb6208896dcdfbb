package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/log"
)

// Publisher receives an event after every committed mutation. Publish must not block.
type Publisher interface {
	Publish(event *events.Event)
}

// Config holds the collaborators shared by stores
type Config struct {
	Clock       func() time.Time
	IDGenerator func() (string, error)
	Publisher   Publisher
	Logger      *zerolog.Logger
}

// Option configures a store
type Option func(*Config)

// WithClock sets the time source used for CreatedAt and UpdatedAt
func WithClock(clock func() time.Time) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithIDGenerator sets the generator used when an entity is created without an ID
func WithIDGenerator(gen func() (string, error)) Option {
	return func(c *Config) {
		c.IDGenerator = gen
	}
}

// WithPublisher sets the sink for entity change events
func WithPublisher(p Publisher) Option {
	return func(c *Config) {
		c.Publisher = p
	}
}

// WithLogger sets the logger used for committed mutations
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = &logger
	}
}

// NewConfig applies options over the defaults
func NewConfig(opts ...Option) Config {
	cfg := Config{
		Clock:       time.Now,
		IDGenerator: NewUUID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewUUID returns a random (version 4) UUID in textual form
func NewUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c Config) logger(kind string) zerolog.Logger {
	if c.Logger != nil {
		return c.Logger.With().Str("kind", kind).Logger()
	}
	return log.WithKind(kind)
}
