package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Settings are the process settings of sigproxy, read from the
// environment.
type Settings struct {
	// ConfigPath names the YAML document.
	ConfigPath string `env:"SIGPROXY_CONFIG" envDefault:"sigproxy.yaml"`

	ListenAddr  string `env:"SIGPROXY_LISTEN" envDefault:":8080"`
	MetricsAddr string `env:"SIGPROXY_METRICS_LISTEN" envDefault:":9090"`

	// Upstream is the base URL verified requests are forwarded to.
	Upstream string `env:"SIGPROXY_UPSTREAM"`

	// UpstreamTarget names the target used to re-sign forwarded requests.
	// Empty forwards them unchanged.
	UpstreamTarget string `env:"SIGPROXY_UPSTREAM_TARGET"`

	// ResponseTarget names the target used to sign responses. Empty
	// leaves responses unsigned.
	ResponseTarget string `env:"SIGPROXY_RESPONSE_TARGET"`

	// MaxBodyBytes bounds request bodies, which are buffered for digest
	// and signature checks.
	MaxBodyBytes int64 `env:"SIGPROXY_MAX_BODY_BYTES" envDefault:"10485760"`

	AllowUnsigned bool   `env:"SIGPROXY_ALLOW_UNSIGNED"`
	RequireDigest bool   `env:"SIGPROXY_REQUIRE_DIGEST"`
	Realm         string `env:"SIGPROXY_REALM" envDefault:"httpsig"`

	// RateLimit is the sustained requests per second allowed for each
	// verified key id. Zero disables limiting.
	RateLimit float64 `env:"SIGPROXY_RATE_LIMIT"`
	RateBurst int     `env:"SIGPROXY_RATE_BURST" envDefault:"20"`

	LogLevel string `env:"SIGPROXY_LOG_LEVEL" envDefault:"info"`

	ReadHeaderTimeout time.Duration `env:"SIGPROXY_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"SIGPROXY_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// LoadSettings reads Settings from the environment after loading the
// nearest .env file.
func LoadSettings() (Settings, error) {
	loadDotEnv()

	return ParseSettings(nil)
}

// ParseSettings reads Settings from environ, or from the process
// environment when environ is nil.
func ParseSettings(environ map[string]string) (Settings, error) {
	var (
		s    Settings
		opts env.Options
	)

	if environ != nil {
		opts.Environment = environ
	}

	if err := env.Parse(&s, opts); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}

	return s, nil
}

// Validate checks the settings.
func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ConfigPath, validation.Required),
		validation.Field(&s.ListenAddr, validation.Required),
		validation.Field(&s.Upstream, validation.When(s.Upstream != "", validation.By(absoluteURL))),
		validation.Field(&s.LogLevel, validation.By(func(any) error {
			if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
				return validation.NewError("validation_log_level", err.Error())
			}

			return nil
		})),
		validation.Field(&s.MaxBodyBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.RateLimit, validation.Min(0.0)),
		validation.Field(&s.RateBurst, validation.When(s.RateLimit > 0, validation.Min(1))),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

func absoluteURL(value any) error {
	raw, _ := value.(string)

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_url", "must be an absolute URL")
	}

	return nil
}

// loadDotEnv loads the first .env file found walking up from the working
// directory.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}

		dir = parent
	}
}
