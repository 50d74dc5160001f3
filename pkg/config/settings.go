package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/goliatone/go-config/cfgx"
)

// Handler descriptor names accepted by Settings.Property.Handler and the
// CORE_PROPERTY_HANDLER environment variable.
const (
	HandlerEnvironment = "environment"
	HandlerVault       = "vault"
	HandlerAppConfig   = "appconfig"
	HandlerLocal       = "local"
)

// Environment variables consulted by FromEnv.
const (
	EnvPropertyHandler   = "CORE_PROPERTY_HANDLER"
	EnvDevMode           = "CORE_DEV_MODE"
	EnvVaultAddress      = "VAULT_ADDR"
	EnvAppConfigEndpoint = "CORE_APPCONFIG_ENDPOINT"
	EnvAppConfigLabel    = "CORE_APPCONFIG_LABEL"
)

// Settings captures module-level configuration knobs. The Configuration type
// pulls from these nested structs when it resolves its property handler.
type Settings struct {
	Function  FunctionSettings  `mapstructure:"function" json:"function"`
	Property  PropertySettings  `mapstructure:"property" json:"property"`
	Vault     VaultSettings     `mapstructure:"vault" json:"vault"`
	AppConfig AppConfigSettings `mapstructure:"app_config" json:"app_config"`
}

// FunctionSettings identify the function and its runtime mode.
type FunctionSettings struct {
	Name    string `mapstructure:"name" json:"name"`
	DevMode bool   `mapstructure:"dev_mode" json:"dev_mode"`
}

// PropertySettings select the property backend and its cache behavior.
type PropertySettings struct {
	Handler  string        `mapstructure:"handler" json:"handler"`
	Cache    bool          `mapstructure:"cache" json:"cache"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
}

// VaultSettings point at the secret backend.
type VaultSettings struct {
	Address string `mapstructure:"address" json:"address"`
}

// AppConfigSettings point at the remote configuration store.
type AppConfigSettings struct {
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	Label    string `mapstructure:"label" json:"label"`
}

// Defaults returns the baseline settings.
func Defaults() Settings {
	return Settings{
		Property: PropertySettings{
			Handler:  HandlerEnvironment,
			Cache:    true,
			CacheTTL: 5 * time.Minute,
		},
	}
}

// Validate ensures required fields are present and sane.
func (s *Settings) Validate() error {
	switch s.Property.Handler {
	case HandlerEnvironment, HandlerLocal:
	case HandlerVault:
		if s.Vault.Address == "" {
			return fmt.Errorf("vault.address is required for the %s handler", HandlerVault)
		}
	case HandlerAppConfig:
		if s.AppConfig.Endpoint == "" {
			return fmt.Errorf("app_config.endpoint is required for the %s handler", HandlerAppConfig)
		}
	default:
		return fmt.Errorf("unknown property handler %q", s.Property.Handler)
	}
	if s.Property.CacheTTL < 0 {
		return fmt.Errorf("property.cache_ttl must be >= 0")
	}
	return nil
}

// Load decodes arbitrary input (struct, map, cfg struct) using cfgx helpers.
// While cfgx.Build still returns zero values, we fallback to a lightweight
// decoder to keep smoke tests meaningful. Once cfgx is fully implemented we
// can drop the fallback.
func Load(input any, opts ...LoadOption) (Settings, error) {
	settings := loadOptions{}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := cfgx.Build(input, settings.buildOpts...)
	if err != nil {
		return Settings{}, err
	}

	if isZero(cfg) {
		if err := decodeFallback(input, &cfg); err != nil {
			return Settings{}, err
		}
	}

	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}

	return cfg, nil
}

// FromEnv builds settings from the process environment, then applies defaults
// and validation. Dev mode forces the environment handler (or the local store
// handler when one is configured) regardless of the declared backend.
func FromEnv() (Settings, error) {
	s := Settings{
		Property: PropertySettings{
			Handler: os.Getenv(EnvPropertyHandler),
		},
		Vault: VaultSettings{
			Address: os.Getenv(EnvVaultAddress),
		},
		AppConfig: AppConfigSettings{
			Endpoint: os.Getenv(EnvAppConfigEndpoint),
			Label:    os.Getenv(EnvAppConfigLabel),
		},
	}
	if raw := os.Getenv(EnvDevMode); raw != "" {
		dev, err := strconv.ParseBool(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", EnvDevMode, err)
		}
		s.Function.DevMode = dev
	}
	s = s.withDefaults()
	if s.Function.DevMode && s.Property.Handler != HandlerLocal {
		s.Property.Handler = HandlerEnvironment
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadOption lets callers amend cfgx build options.
type LoadOption func(*loadOptions)

type loadOptions struct {
	buildOpts []cfgx.Option[Settings]
}

// WithBuildOptions forwards cfgx options (duration hooks, preprocessors, etc.).
func WithBuildOptions(opts ...cfgx.Option[Settings]) LoadOption {
	return func(lo *loadOptions) {
		lo.buildOpts = append(lo.buildOpts, opts...)
	}
}

func (s Settings) withDefaults() Settings {
	defaults := Defaults()

	if s.Property.Handler == "" {
		s.Property.Handler = defaults.Property.Handler
	}
	if s.Property.CacheTTL == 0 {
		s.Property.CacheTTL = defaults.Property.CacheTTL
	}
	if !s.Property.Cache {
		s.Property.Cache = defaults.Property.Cache
	}
	return s
}

func isZero(cfg Settings) bool {
	return reflect.DeepEqual(cfg, Settings{})
}

func decodeFallback(input any, cfg *Settings) error {
	switch v := input.(type) {
	case nil:
		return nil
	case Settings:
		*cfg = v
		return nil
	case *Settings:
		if v != nil {
			*cfg = *v
		}
		return nil
	case map[string]any:
		return decodeMap(v, cfg)
	default:
		return fmt.Errorf("unsupported settings input type: %T", input)
	}
}

func decodeMap(input map[string]any, cfg *Settings) error {
	if input == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, cfg)
}
