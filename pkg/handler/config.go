package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/glauth/ldap"
	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/franchb/ldapsafe/pkg/config"
	"github.com/franchb/ldapsafe/pkg/escape"
)

// Handler is served by the embedded directory
type Handler interface {
	ldap.Binder
	ldap.Searcher
	ldap.Closer
}

type configHandler struct {
	log       *zerolog.Logger
	cfg       *config.Config
	baseDN    *goldap.DN
	ldohelper *LDAPOpsHelper
}

// NewConfigHandler serves the users of the configuration file as a
// read-only directory below Directory.BaseDN
func NewConfigHandler(opts ...Option) (Handler, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, errors.New("no configuration provided")
	}

	baseDN, err := goldap.ParseDN(options.Config.Directory.BaseDN)
	if err != nil {
		return nil, fmt.Errorf("invalid directory base DN %q: %w", options.Config.Directory.BaseDN, err)
	}

	if len(baseDN.RDNs) == 0 {
		return nil, errors.New("the directory base DN cannot be empty")
	}

	helper := options.Helper
	if helper == nil {
		helper = NewLDAPOpsHelper()
	}

	return configHandler{
		log:       &options.Logger,
		cfg:       options.Config,
		baseDN:    baseDN,
		ldohelper: helper,
	}, nil
}

func (h configHandler) Bind(bindDN, bindSimplePw string, conn net.Conn) (resultCode ldap.LDAPResultCode, err error) {
	return h.ldohelper.Bind(context.Background(), h, bindDN, bindSimplePw, conn)
}

func (h configHandler) Search(bindDN string, searchReq ldap.SearchRequest, conn net.Conn) (result ldap.ServerSearchResult, err error) {
	return h.ldohelper.Search(context.Background(), h, bindDN, searchReq, conn)
}

func (h configHandler) Close(boundDN string, conn net.Conn) error {
	h.log.Debug().Str("binddn", boundDN).Str("src", conn.RemoteAddr().String()).Msg("connection closed")
	return nil
}

func (h configHandler) GetBaseDN() *goldap.DN {
	return h.baseDN
}

func (h configHandler) GetLog() *zerolog.Logger {
	return h.log
}

func (h configHandler) GetCfg() *config.Config {
	return h.cfg
}

func (h configHandler) FindUser(ctx context.Context, userName string) (f bool, u config.User, err error) {
	for _, user := range h.cfg.Users {
		if strings.EqualFold(user.Name, userName) {
			return true, user, nil
		}
	}
	return false, config.User{}, nil
}

// FindEntries returns the base entry, one organizational unit per distinct
// user OU and every user
func (h configHandler) FindEntries(ctx context.Context) (entrylist []*ldap.Entry, err error) {
	baseDN := h.cfg.Directory.BaseDN

	entries := []*ldap.Entry{h.rootNode(ctx)}

	seen := map[string]bool{}
	for _, user := range h.cfg.Users {
		ou := strings.ToLower(user.OU)
		if seen[ou] {
			continue
		}
		seen[ou] = true

		entries = append(entries, &ldap.Entry{
			DN: fmt.Sprintf("ou=%s,%s", escape.DN(user.OU), baseDN),
			Attributes: []*ldap.EntryAttribute{
				{Name: "ou", Values: []string{user.OU}},
				{Name: "objectClass", Values: []string{"organizationalUnit", "top"}},
			},
		})
	}

	for _, user := range h.cfg.Users {
		entries = append(entries, h.userEntry(ctx, user))
	}

	return entries, nil
}

func (h configHandler) rootNode(ctx context.Context) *ldap.Entry {
	attrs := []*ldap.EntryAttribute{}
	for _, rdn := range h.baseDN.RDNs {
		for _, attr := range rdn.Attributes {
			attrs = append(attrs, &ldap.EntryAttribute{Name: attr.Type, Values: []string{attr.Value}})
		}
	}
	attrs = append(attrs, &ldap.EntryAttribute{Name: "objectClass", Values: []string{"organizationalUnit", "dcObject", "top"}})
	return &ldap.Entry{DN: h.cfg.Directory.BaseDN, Attributes: attrs}
}

func (h configHandler) userEntry(ctx context.Context, user config.User) *ldap.Entry {
	attrs := []*ldap.EntryAttribute{
		{Name: "cn", Values: []string{user.Name}},
		{Name: "uid", Values: []string{user.Name}},
		{Name: "ou", Values: []string{user.OU}},
		{Name: "objectClass", Values: []string{"inetOrgPerson", "organizationalPerson", "person", "top"}},
	}

	if len(user.GivenName) > 0 {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "givenName", Values: []string{user.GivenName}})
	}

	// sn is mandatory for person
	sn := user.SN
	if sn == "" {
		sn = user.Name
	}
	attrs = append(attrs, &ldap.EntryAttribute{Name: "sn", Values: []string{sn}})

	if len(user.Mail) > 0 {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "mail", Values: []string{user.Mail}})
	}

	if user.Disabled {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "accountStatus", Values: []string{"inactive"}})
	} else {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "accountStatus", Values: []string{"active"}})
	}

	keys := make([]string, 0, len(user.CustomAttrs))
	for k := range user.CustomAttrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		attrs = append(attrs, &ldap.EntryAttribute{Name: k, Values: attributeValues(user.CustomAttrs[k])})
	}

	dn := fmt.Sprintf("cn=%s,ou=%s,%s", escape.DN(user.Name), escape.DN(user.OU), h.cfg.Directory.BaseDN)
	return &ldap.Entry{DN: dn, Attributes: attrs}
}

func attributeValues(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		values := make([]string, 0, len(val))
		for _, item := range val {
			values = append(values, fmt.Sprint(item))
		}
		return values
	case []string:
		return val
	default:
		return []string{fmt.Sprint(val)}
	}
}
