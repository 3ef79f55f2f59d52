package handler

import (
	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/pkg/config"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Logger zerolog.Logger
	Config *config.Config
	Helper *LDAPOpsHelper
}

// newOptions initializes the available default options.
func newOptions(opts ...Option) Options {
	opt := Options{}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Logger provides a function to set the logger option.
func Logger(val zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Config provides a function to set the config option.
func Config(val *config.Config) Option {
	return func(o *Options) {
		o.Config = val
	}
}

// Helper provides a function to set the shared LDAP operations helper.
func Helper(val *LDAPOpsHelper) Option {
	return func(o *Options) {
		o.Helper = val
	}
}
