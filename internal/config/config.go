// Package config loads runtime configuration from defaults, an optional YAML
// file and TASKTIMER_* environment variables, in that order.
package config

import (
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	envPrefix  = "TASKTIMER_"
	envCfgPath = "TASKTIMER_CONFIG"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Store   Store   `koanf:"store"`
	Records Records `koanf:"records"`
	Auth    Auth    `koanf:"auth"`
	Log     Log     `koanf:"log"`
}

// HTTP configures the listener, the SPA directory and server timeouts.
type HTTP struct {
	Addr     string `koanf:"addr"`
	WebDir   string `koanf:"webDir"`
	Timeouts struct {
		Read       time.Duration `koanf:"read"`
		ReadHeader time.Duration `koanf:"readHeader"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		Shutdown   time.Duration `koanf:"shutdown"`
	} `koanf:"timeouts"`
}

// Store selects the persistence backend. DSN is required for SQL drivers.
type Store struct {
	Driver      string `koanf:"driver"`
	DSN         string `koanf:"dsn"`
	AutoMigrate bool   `koanf:"autoMigrate"`
}

// Records controls time record visibility. With UserScoped off every
// visitor sees every record.
type Records struct {
	UserScoped bool `koanf:"userScoped"`
}

// Auth configures sessions and optional OIDC single sign-on.
type Auth struct {
	SessionTTL   time.Duration `koanf:"sessionTTL"`
	SecureCookie bool          `koanf:"secureCookie"`
	OIDC         OIDC          `koanf:"oidc"`
}

// OIDC is enabled when Issuer is set.
type OIDC struct {
	Issuer       string `koanf:"issuer"`
	ClientID     string `koanf:"clientId"`
	ClientSecret string `koanf:"clientSecret"`
	RedirectURL  string `koanf:"redirectUrl"`
}

// Enabled reports whether an OIDC issuer is configured.
func (o OIDC) Enabled() bool { return o.Issuer != "" }

// Log configures the slog handler. Pretty selects text output over JSON.
type Log struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

var defaults = map[string]any{
	"http.addr":                ":8080",
	"http.webDir":              "web",
	"http.timeouts.read":       "15s",
	"http.timeouts.readHeader": "5s",
	"http.timeouts.write":      "15s",
	"http.timeouts.idle":       "60s",
	"http.timeouts.shutdown":   "10s",
	"store.driver":             DriverMemory,
	"store.dsn":                "",
	"store.autoMigrate":        true,
	"records.userScoped":       true,
	"auth.sessionTTL":          "720h",
	"auth.secureCookie":        false,
	"auth.oidc.issuer":         "",
	"auth.oidc.clientId":       "",
	"auth.oidc.clientSecret":   "",
	"auth.oidc.redirectUrl":    "",
	"log.level":                "info",
	"log.pretty":               false,
}

// Load builds a Config. path may be empty, in which case TASKTIMER_CONFIG is
// consulted; with neither set only defaults and the environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, errors.Wrapf(err, "set default %s", key)
		}
	}

	if path == "" {
		path = os.Getenv(envCfgPath)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, v string) (string, any) {
			if key == envCfgPath {
				return "", nil
			}
			return canonicalizeEnvKey(strings.TrimPrefix(key, envPrefix), existing), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables")
	}

	cfg := new(Config)
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return cfg, cfg.Validate()
}

// Validate reports configuration that cannot start a server.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverMySQL:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return errors.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return errors.Errorf("unknown store.driver %q (want memory, postgres or mysql)", c.Store.Driver)
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.sessionTTL must be positive")
	}
	if c.Auth.OIDC.Enabled() && (c.Auth.OIDC.ClientID == "" || c.Auth.OIDC.RedirectURL == "") {
		return errors.New("auth.oidc.clientId and auth.oidc.redirectUrl are required when auth.oidc.issuer is set")
	}
	return nil
}

// canonicalizeEnvKey maps STORE_AUTOMIGRATE to store.autoMigrate by matching
// each segment against keys that already exist.
func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}
	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (string, map[string]any, bool) {
	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}
		child, _ := value.(map[string]any)
		return key, child, true
	}
	return "", nil, false
}

func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
