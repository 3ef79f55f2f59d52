package toml

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/pkg/config"
)

var (
	log = zerolog.Nop()
)

func SetLogger(logger zerolog.Logger) {
	log = logger
}

type Config struct {
	Users []toml.Primitive
}

type User struct {
	Name             string
	CustomAttributes []toml.Primitive
}

// LoadFile reads path and builds the configuration from its contents
func LoadFile(path string) (*config.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}

	cfg, err := NewConfig(string(data))
	if err != nil {
		return nil, err
	}

	cfg.ConfigFile = path

	return cfg, nil
}

// NewConfig parses, defaults and validates a TOML configuration
func NewConfig(data string) (*config.Config, error) {
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	cfg, err = validateConfig(cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseConfig(data string) (*config.Config, error) {
	cfg := new(config.Config)

	// setup defaults
	cfg.API.Listen = "localhost:8080"
	cfg.LDAP.ResultAttribute = "cn"
	cfg.LDAP.Timeout = 10 * time.Second
	cfg.Behaviors.NumberOfFailedBinds = 3
	cfg.Behaviors.PeriodOfFailedBinds = 10
	cfg.Behaviors.BlockFailedBindsFor = 60
	cfg.Behaviors.PruneSourceTableEvery = 600
	cfg.Behaviors.PruneSourcesOlderThan = 600

	if _, err := toml.Decode(data, cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}

	usersCustomAttributes(data, cfg)

	// Patch with default values where not specified
	for i := range cfg.Users {
		if cfg.Users[i].OU == "" {
			cfg.Users[i].OU = "users"
		}
	}

	cfg.Directory.BaseDN = strings.ToLower(cfg.Directory.BaseDN)

	return cfg, nil
}

// usersCustomAttributes changes config passed in by adding extra information coming from the custom attributes
func usersCustomAttributes(data string, cfg *config.Config) {
	c := new(Config)

	md, err := toml.Decode(data, c)
	if err != nil {
		log.Error().Err(err).Msg("issues parsing users...keep going")
		return
	}

	for _, u := range c.Users {
		user := new(User)
		if err := md.PrimitiveDecode(u, user); err != nil {
			log.Error().Err(err).Msg("issues parsing user custom attributes")
			continue
		}

		if user.CustomAttributes == nil {
			continue
		}

		for idx, cUser := range cfg.Users {
			if cUser.Name != user.Name {
				continue
			}

			x := make(map[string]interface{})

			for _, attribute := range user.CustomAttributes {
				_ = md.PrimitiveDecode(attribute, x)

				for k, v := range x {
					if cfg.Users[idx].CustomAttrs == nil {
						cfg.Users[idx].CustomAttrs = make(map[string]interface{})
					}

					cfg.Users[idx].CustomAttrs[k] = v
				}
			}
		}
	}
}

func validateConfig(cfg *config.Config) (*config.Config, error) {
	if cfg.API.Enabled && len(cfg.API.Listen) == 0 {
		return cfg, fmt.Errorf("no web API bind address was specified: please disable the API or use the 'listen' option")
	}

	if cfg.API.TLS && (cfg.API.Cert == "" || cfg.API.Key == "") {
		return cfg, fmt.Errorf("web API TLS requires both 'cert' and 'key'")
	}

	if cfg.API.Enabled {
		u, err := url.Parse(cfg.LDAP.URL)
		if err != nil {
			return cfg, fmt.Errorf("invalid LDAP url %q: %w", cfg.LDAP.URL, err)
		}

		switch u.Scheme {
		case "ldap", "ldaps":
		default:
			return cfg, fmt.Errorf("invalid LDAP url %q - scheme must be 'ldap' or 'ldaps'", cfg.LDAP.URL)
		}

		if u.Scheme == "ldaps" && cfg.LDAP.StartTLS {
			return cfg, fmt.Errorf("'starttls' cannot be combined with an ldaps url")
		}
	}

	if cfg.LDAP.BindDN != "" && cfg.LDAP.BindPassword == "" {
		return cfg, fmt.Errorf("'binddn' %s has no 'bindpassword'", cfg.LDAP.BindDN)
	}

	if cfg.Directory.Enabled {
		if len(cfg.Directory.Listen) == 0 {
			return cfg, fmt.Errorf("no directory bind address was specified: please disable the directory or use the 'listen' option")
		}

		if len(cfg.Directory.BaseDN) == 0 {
			return cfg, fmt.Errorf("the embedded directory requires a 'basedn'")
		}
	}

	if cfg.Behaviors.LimitFailedBinds && cfg.Behaviors.NumberOfFailedBinds < 1 {
		return cfg, fmt.Errorf("'numberoffailedbinds' must be at least 1 when 'limitfailedbinds' is set")
	}

	for _, user := range cfg.Users {
		if user.Name == "" {
			return cfg, fmt.Errorf("a user has no 'name'")
		}

		if (user.PassBcrypt == "") == (user.PassSHA256 == "") {
			return cfg, fmt.Errorf("user '%s': exactly one of 'passbcrypt' or 'passsha256' is required", user.Name)
		}

		if user.Disabled {
			log.Info().Str("user", user.Name).Msg("user is disabled and cannot bind")
		}
	}

	return cfg, nil
}
