package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	ldaptls "github.com/franchb/ldapsafe/internal/tls"
	"github.com/franchb/ldapsafe/pkg/config"
)

// ErrSearchFailed wraps every failure reported by Search.
var ErrSearchFailed = errors.New("search failed")

// Client runs searches against the configured directory. It never escapes
// its input: base DN and filter must already be sanitized.
type Client struct {
	log       zerolog.Logger
	cfg       config.LDAP
	tlsConfig *tls.Config
}

// New validates the LDAP settings and prepares the TLS configuration.
func New(opts ...Option) (*Client, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, errors.New("no LDAP configuration provided")
	}

	cfg := *options.Config

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP url %q: %w", cfg.URL, err)
	}

	var caPEM []byte

	if cfg.CACert != "" {
		caPEM, err = os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
	}

	tlsConfig, err := ldaptls.MakeTLS(caPEM, u.Hostname(), cfg.Insecure, cfg.LegacyTLS)
	if err != nil {
		return nil, err
	}

	if cfg.ResultAttribute == "" {
		cfg.ResultAttribute = "cn"
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		log:       options.Logger,
		cfg:       cfg,
		tlsConfig: tlsConfig,
	}, nil
}

// Search looks up filter below baseDN across the whole subtree and returns
// the first value of the result attribute of every entry found.
func (c *Client) Search(ctx context.Context, baseDN, filter string) ([]string, error) {
	results, err := c.search(ctx, baseDN, filter)
	if err != nil {
		c.log.Error().Err(err).Str("basedn", baseDN).Str("filter", filter).Msg("search failed")

		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	c.log.Debug().Str("basedn", baseDN).Str("filter", filter).Int("entries", len(results)).Msg("search OK")

	return results, nil
}

func (c *Client) search(ctx context.Context, baseDN, filter string) ([]string, error) {
	timeout := c.timeout(ctx)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := ldap.DialURL(
		c.cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
		ldap.DialWithTLSConfig(c.tlsConfig),
	)
	if err != nil {
		return nil, err
	}

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	defer stop()

	conn.SetTimeout(timeout)

	if c.cfg.StartTLS {
		if err = conn.StartTLS(c.tlsConfig); err != nil {
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}

	if c.cfg.BindDN != "" {
		if err = conn.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("bind as %s: %w", c.cfg.BindDN, err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		c.cfg.SizeLimit,
		int(timeout/time.Second),
		false,
		filter,
		[]string{c.cfg.ResultAttribute},
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		if searchResult == nil || !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, err
		}

		c.log.Warn().Int("sizelimit", c.cfg.SizeLimit).Msg("size limit exceeded, returning partial results")
	}

	results := make([]string, 0, len(searchResult.Entries))

	for _, entry := range searchResult.Entries {
		results = append(results, entry.GetAttributeValue(c.cfg.ResultAttribute))
	}

	return results, nil
}

// timeout is the configured timeout, shortened to the context deadline.
func (c *Client) timeout(ctx context.Context) time.Duration {
	timeout := c.cfg.Timeout

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	return timeout
}
