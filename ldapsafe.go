package ldapsafe

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/internal/tls"
	"github.com/franchb/ldapsafe/internal/toml"
	"github.com/franchb/ldapsafe/internal/version"
	"github.com/franchb/ldapsafe/pkg/client"
	"github.com/franchb/ldapsafe/pkg/config"
	"github.com/franchb/ldapsafe/pkg/frontend"
	"github.com/franchb/ldapsafe/pkg/logging"
	"github.com/franchb/ldapsafe/pkg/server"
	"github.com/franchb/ldapsafe/pkg/stats"
)

var log zerolog.Logger

// Start loads the configuration file and runs until ctx is done or the
// process is interrupted
func Start(ctx context.Context, configPath string) error {
	cfg, err := toml.LoadFile(configPath)
	if err != nil {
		return err
	}

	return Run(ctx, cfg)
}

// Run starts the embedded directory and the web form enabled in cfg
func Run(ctx context.Context, cfg *config.Config) error {
	log = logging.InitLogging(cfg.Debug, cfg.Syslog, cfg.StructuredLog)

	toml.SetLogger(log)
	tls.SetLogger(log)

	stats.SetVersion(version.Version)

	if !cfg.Directory.Enabled && !cfg.API.Enabled {
		return errors.New("neither the directory nor the web API is enabled")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 2)

	var s *server.LdapSvc

	if cfg.Directory.Enabled {
		var err error

		s, err = server.NewServer(
			server.Logger(log),
			server.Config(cfg),
		)
		if err != nil {
			log.Error().Err(err).Msg("could not create server")
			return err
		}

		go func() {
			if err := s.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("could not start LDAP server")
				errs <- err
			}
		}()
	}

	// web API
	if cfg.API.Enabled {
		log.Info().Msg("Web API enabled")

		c, err := client.New(
			client.Logger(log),
			client.Config(&cfg.LDAP),
		)
		if err != nil {
			log.Error().Err(err).Msg("could not create LDAP client")

			if s != nil {
				s.Shutdown()
			}

			return err
		}

		go func() {
			if err := frontend.RunAPI(ctx,
				frontend.Logger(log),
				frontend.Config(&cfg.API),
				frontend.Backend(c),
			); err != nil {
				errs <- err
			}
		}()
	}

	var err error

	// Block until we receive our signal.
	select {
	case <-ctx.Done():
	case err = <-errs:
	}

	stop()

	if s != nil {
		s.Shutdown()
	}

	log.Info().Str("version", version.Version).Msg("AP exit")

	return err
}
