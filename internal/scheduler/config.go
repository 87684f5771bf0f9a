package scheduler

import (
	"time"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval  time.Duration
	JobTimeout   time.Duration
	PublishBatch int
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Minute,
		JobTimeout:   30 * time.Second,
		PublishBatch: 100,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = def.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	if c.PublishBatch <= 0 {
		c.PublishBatch = def.PublishBatch
	}
	return c
}
