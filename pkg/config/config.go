package config

import "time"

// config file
type (
	// LDAP describes the upstream directory searched by the web form
	LDAP struct {
		URL             string // ldap://host:389 or ldaps://host:636
		BindDN          string // empty for an anonymous search
		BindPassword    string
		StartTLS        bool
		Insecure        bool   // skip certificate verification
		CACert          string // PEM file trusted in addition to the system pool
		LegacyTLS       bool
		ResultAttribute string // e.g. cn
		SizeLimit       int
		Timeout         time.Duration
	}

	// Directory is the embedded, read-only demo directory
	Directory struct {
		Enabled bool
		Listen  string
		BaseDN  string
	}

	API struct {
		Cert      string
		Enabled   bool
		Internals bool // expose /metrics
		Key       string
		Listen    string
		TLS       bool
	}

	Behaviors struct {
		AllowAnonymous        bool
		LimitFailedBinds      bool
		NumberOfFailedBinds   int
		PeriodOfFailedBinds   time.Duration
		BlockFailedBindsFor   time.Duration
		PruneSourceTableEvery time.Duration
		PruneSourcesOlderThan time.Duration
	}

	User struct {
		Name        string
		OU          string
		PassSHA256  string
		PassBcrypt  string
		Disabled    bool
		Mail        string
		GivenName   string
		SN          string
		CustomAttrs map[string]interface{} `toml:"-"`
	}

	Config struct {
		API           API
		LDAP          LDAP
		Directory     Directory
		Behaviors     Behaviors
		Debug         bool
		Syslog        bool
		StructuredLog bool
		Users         []User
		ConfigFile    string `toml:"-"`
	}
)
