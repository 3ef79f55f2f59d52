package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/glauth/ldap"
	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/pkg/config"
	"github.com/franchb/ldapsafe/pkg/handler"
)

// LdapSvc is the embedded, read-only demo directory
type LdapSvc struct {
	c    *config.Config
	l    *ldap.Server
	log  zerolog.Logger
	quit chan bool
	once sync.Once
}

func NewServer(opts ...Option) (*LdapSvc, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, errors.New("no configuration provided")
	}

	s := LdapSvc{
		log:  options.Logger,
		c:    options.Config,
		quit: make(chan bool),
	}

	h, err := handler.NewConfigHandler(
		handler.Logger(s.log),
		handler.Config(s.c),
		handler.Helper(handler.NewLDAPOpsHelper()),
	)
	if err != nil {
		return nil, err
	}

	s.l = ldap.NewServer()
	s.l.EnforceLDAP = true
	s.l.QuitChannel(s.quit)

	s.l.BindFunc("", h)
	s.l.SearchFunc("", h)
	s.l.CloseFunc("", h)

	return &s, nil
}

// ListenAndServe listens on the configured directory address
func (s *LdapSvc) ListenAndServe() error {
	s.log.Info().Str("address", s.c.Directory.Listen).Str("basedn", s.c.Directory.BaseDN).Msg("LDAP server listening")
	return s.l.ListenAndServe(s.c.Directory.Listen)
}

// Serve accepts connections on ln until Shutdown is called
func (s *LdapSvc) Serve(ln net.Listener) error {
	s.log.Info().Str("address", ln.Addr().String()).Str("basedn", s.c.Directory.BaseDN).Msg("LDAP server listening")
	return s.l.Serve(ln)
}

// Shutdown ends the accept loop. It doesn't wait for open connections.
func (s *LdapSvc) Shutdown() {
	s.once.Do(func() {
		select {
		case s.quit <- true:
		case <-time.After(5 * time.Second):
			s.log.Warn().Msg("LDAP server did not acknowledge shutdown")
		}
	})
}
