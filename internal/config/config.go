// Package config loads AcousticDER settings from acousticder.yml, a .env file
// and ACOUSTIC_DER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/himanishpuri/AcousticDER/internal/der"
)

const (
	// FileName is the config file looked up without an explicit --config.
	FileName  = "acousticder"
	EnvPrefix = "ACOUSTIC_DER"

	// envSearchDepth is how many parent directories are searched for .env.
	envSearchDepth = 5
)

type Config struct {
	DBPath    string   `mapstructure:"db_path" json:"db_path" validate:"required"`
	LogLevel  string   `mapstructure:"log_level" json:"log_level" validate:"oneof=debug info warn warning error fatal"`
	LogFormat string   `mapstructure:"log_format" json:"log_format" validate:"oneof=console json"`
	Format    string   `mapstructure:"format" json:"format" validate:"oneof=text json yaml"`
	Workers   int      `mapstructure:"workers" json:"workers" validate:"min=1,max=256"`
	Scoring   Scoring  `mapstructure:"scoring" json:"scoring"`
	Server    Server   `mapstructure:"server" json:"server"`
	Diarizer  Diarizer `mapstructure:"diarizer" json:"diarizer"`
}

type Scoring struct {
	Collar      float64 `mapstructure:"collar" json:"collar" validate:"gte=0"`
	SkipOverlap bool    `mapstructure:"skip_overlap" json:"skip_overlap"`
	Lenient     bool    `mapstructure:"lenient" json:"lenient"`
}

// Options converts the scoring section into der options.
func (s Scoring) Options() der.Options {
	return der.Options{Collar: s.Collar, SkipOverlap: s.SkipOverlap}
}

type Server struct {
	Host        string   `mapstructure:"host" json:"host"`
	Port        int      `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	MaxUploadMB int      `mapstructure:"max_upload_mb" json:"max_upload_mb" validate:"min=1"`
	Origins     []string `mapstructure:"origins" json:"origins"`
}

// Addr returns host:port for net/http.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Diarizer struct {
	URL            string `mapstructure:"url" json:"url" validate:"omitempty,url"`
	Token          string `mapstructure:"token" json:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" json:"timeout_seconds" validate:"min=1"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "acousticder.sqlite3")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("format", "text")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("scoring.collar", 0.0)
	v.SetDefault("scoring.skip_overlap", false)
	v.SetDefault("scoring.lenient", false)
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("server.origins", []string{"*"})
	v.SetDefault("diarizer.url", "http://localhost:8000")
	v.SetDefault("diarizer.token", "")
	v.SetDefault("diarizer.timeout_seconds", 600)
}

type loader struct {
	file   string
	envDir string
	viper  *viper.Viper
}

type Option func(*loader)

// WithFile reads settings from path instead of searching for acousticder.yml.
func WithFile(path string) Option {
	return func(l *loader) { l.file = path }
}

// WithEnvDir starts the .env search in dir instead of the working directory.
func WithEnvDir(dir string) Option {
	return func(l *loader) { l.envDir = dir }
}

// WithViper loads into v, so flags bound on v by the caller take precedence.
func WithViper(v *viper.Viper) Option {
	return func(l *loader) { l.viper = v }
}

// Load resolves the configuration. Precedence from highest: bound flags,
// environment (including .env), config file, defaults.
func Load(opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.viper == nil {
		l.viper = viper.New()
	}
	if l.envDir == "" {
		if wd, err := os.Getwd(); err == nil {
			l.envDir = wd
		}
	}

	if _, err := LoadDotEnv(l.envDir); err != nil {
		return nil, err
	}

	v := l.viper
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "acousticder"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Diarizer.Token == "" {
		cfg.Diarizer.Token = os.Getenv("HF_TOKEN")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads the nearest .env file found in dir or up to five of its
// parents. Variables already set in the environment are left alone. It
// returns the path loaded, or "" when none was found.
func LoadDotEnv(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	cur := dir
	for i := 0; i <= envSearchDepth; i++ {
		path := filepath.Join(cur, ".env")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			if err := godotenv.Load(path); err != nil {
				return "", fmt.Errorf("loading %s: %w", path, err)
			}
			return path, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", nil
}
