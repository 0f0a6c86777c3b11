package derscore

import (
	"runtime"

	"github.com/himanishpuri/AcousticDER/internal/der"
)

type Config struct {
	DBPath  string
	Logger  Logger
	Storage Storage
	Scoring der.Options
	Lenient bool
	Workers int
	Persist bool
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithCollar sets the default no-score collar in seconds.
func WithCollar(seconds float64) Option {
	return func(c *Config) {
		c.Scoring.Collar = seconds
	}
}

func WithSkipOverlap(skip bool) Option {
	return func(c *Config) {
		c.Scoring.SkipOverlap = skip
	}
}

// WithLenientParsing skips malformed RTTM records instead of failing.
func WithLenientParsing(lenient bool) Option {
	return func(c *Config) {
		c.Lenient = lenient
	}
}

// WithWorkers bounds how many recordings are scored at once.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithoutPersistence disables the database; evaluations are only returned.
func WithoutPersistence() Option {
	return func(c *Config) {
		c.Persist = false
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:  "acousticder.sqlite3",
		Workers: runtime.NumCPU(),
		Persist: true,
	}
}

type evalConfig struct {
	name    string
	scoring *der.Options
	save    bool
}

// EvalOption adjusts a single evaluation.
type EvalOption func(*evalConfig)

// WithName labels the stored evaluation.
func WithName(name string) EvalOption {
	return func(c *evalConfig) { c.name = name }
}

// WithScoring overrides the service's collar and overlap settings.
func WithScoring(opts der.Options) EvalOption {
	return func(c *evalConfig) { c.scoring = &opts }
}

// WithoutSaving skips storing this evaluation.
func WithoutSaving() EvalOption {
	return func(c *evalConfig) { c.save = false }
}
