package handler

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/glauth/ldap"
	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/franchb/ldapsafe/pkg/config"
	"github.com/franchb/ldapsafe/pkg/stats"
)

type LDAPOpsHandler interface {
	GetBaseDN() *goldap.DN
	GetLog() *zerolog.Logger
	GetCfg() *config.Config

	FindUser(ctx context.Context, userName string) (f bool, u config.User, err error)
	FindEntries(ctx context.Context) (entrylist []*ldap.Entry, err error)
}

type failedBind struct {
	ts time.Time
}

type sourceInfo struct {
	lastSeen  time.Time
	failures  chan failedBind
	waitUntil time.Time
}

// LDAPOpsHelper implements bind and search on top of an LDAPOpsHandler and
// keeps the failed bind bookkeeping shared by all connections.
type LDAPOpsHelper struct {
	mu          sync.Mutex
	sources     map[string]*sourceInfo
	nextPruning time.Time
	now         func() time.Time
}

func NewLDAPOpsHelper() *LDAPOpsHelper {
	return &LDAPOpsHelper{
		sources:     make(map[string]*sourceInfo),
		nextPruning: time.Now(),
		now:         time.Now,
	}
}

func (l *LDAPOpsHelper) Bind(ctx context.Context, h LDAPOpsHandler, bindDN, bindSimplePw string, conn net.Conn) (resultCode ldap.LDAPResultCode, err error) {
	if l.isInTimeout(ctx, h, conn) {
		stats.DirectoryBinds.WithLabelValues("throttled").Inc()
		return ldap.LDAPResultUnwillingToPerform, nil
	}

	bindDN = strings.ToLower(bindDN)

	h.GetLog().Info().Str("binddn", bindDN).Str("basedn", h.GetCfg().Directory.BaseDN).Str("src", conn.RemoteAddr().String()).Msg("Bind request")

	// Special Case: bind as anonymous
	if bindDN == "" && bindSimplePw == "" {
		h.GetLog().Info().Str("src", conn.RemoteAddr().String()).Msg("Anonymous Bind success")
		stats.DirectoryBinds.WithLabelValues("anonymous").Inc()
		return ldap.LDAPResultSuccess, nil
	}

	user, ldapcode := l.findUser(ctx, h, bindDN)
	if ldapcode != ldap.LDAPResultSuccess {
		l.maybePutInTimeout(ctx, h, conn)
		stats.DirectoryBinds.WithLabelValues("failure").Inc()
		return ldapcode, nil
	}

	if user.Disabled {
		h.GetLog().Info().Str("binddn", bindDN).Msg("Bind attempt on disabled account")
		stats.DirectoryBinds.WithLabelValues("failure").Inc()
		return ldap.LDAPResultInsufficientAccessRights, nil
	}

	if !checkPassword(h, *user, bindSimplePw) {
		h.GetLog().Info().Str("binddn", bindDN).Msg("invalid credentials")
		l.maybePutInTimeout(ctx, h, conn)
		stats.DirectoryBinds.WithLabelValues("failure").Inc()
		return ldap.LDAPResultInvalidCredentials, nil
	}

	h.GetLog().Info().Str("binddn", bindDN).Msg("Bind success")
	stats.DirectoryBinds.WithLabelValues("success").Inc()
	return ldap.LDAPResultSuccess, nil
}

func checkPassword(h LDAPOpsHandler, user config.User, pw string) bool {
	if user.PassBcrypt != "" {
		decoded, err := hex.DecodeString(user.PassBcrypt)
		if err != nil {
			h.GetLog().Warn().Str("user", user.Name).Msg("invalid credentials: incorrect stored hash")
			return false
		}
		return bcrypt.CompareHashAndPassword(decoded, []byte(pw)) == nil
	}

	if user.PassSHA256 != "" {
		hash := sha256.Sum256([]byte(pw))
		return subtle.ConstantTimeCompare([]byte(user.PassSHA256), []byte(hex.EncodeToString(hash[:]))) == 1
	}

	return false
}

func (l *LDAPOpsHelper) Search(ctx context.Context, h LDAPOpsHandler, bindDN string, searchReq ldap.SearchRequest, conn net.Conn) (result ldap.ServerSearchResult, err error) {
	if l.isInTimeout(ctx, h, conn) {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultUnwillingToPerform}, fmt.Errorf("Source is in a timeout")
	}

	bindDN = strings.ToLower(bindDN)
	baseDN := h.GetBaseDN()

	anonymous := len(bindDN) < 1

	h.GetLog().Info().Str("binddn", bindDN).Str("basedn", h.GetCfg().Directory.BaseDN).Str("searchbasedn", searchReq.BaseDN).Int("scope", searchReq.Scope).Str("filter", searchReq.Filter).Msg("Search request")

	if anonymous && !h.GetCfg().Behaviors.AllowAnonymous {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultInsufficientAccessRights}, fmt.Errorf("Search Error: Anonymous BindDN not allowed")
	}

	if searchReq.BaseDN == "" {
		return l.searchRootDSE(ctx, h, h.GetCfg().Directory.BaseDN, searchReq)
	}

	searchBaseDN, err := goldap.ParseDN(searchReq.BaseDN)
	if err != nil {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultInvalidDNSyntax}, fmt.Errorf("Search Error: invalid search BaseDN %q: %w", searchReq.BaseDN, err)
	}

	if !baseDN.EqualFold(searchBaseDN) && !baseDN.AncestorOfFold(searchBaseDN) {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultNoSuchObject}, fmt.Errorf("Search Error: search BaseDN %s is not in our BaseDN %s", searchReq.BaseDN, h.GetCfg().Directory.BaseDN)
	}

	all, err := h.FindEntries(ctx)
	if err != nil {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultOperationsError}, fmt.Errorf("Search Error: %w", err)
	}

	found := false
	entries := []*ldap.Entry{}
	for _, entry := range all {
		entryDN, err := goldap.ParseDN(entry.DN)
		if err != nil {
			h.GetLog().Error().Err(err).Str("dn", entry.DN).Msg("skipping entry with an invalid DN")
			continue
		}
		if entryDN.EqualFold(searchBaseDN) {
			found = true
		}
		if inScope(entryDN, searchBaseDN, searchReq.Scope) {
			entries = append(entries, entry)
		}
	}

	if !found {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultNoSuchObject}, fmt.Errorf("Search Error: no such object %s", searchReq.BaseDN)
	}

	h.GetLog().Info().Str("filter", searchReq.Filter).Int("candidates", len(entries)).Msg("Search OK")
	return ldap.ServerSearchResult{Entries: entries, Referrals: []string{}, Controls: []ldap.Control{}, ResultCode: ldap.LDAPResultSuccess}, nil
}

// Search RootDSE and return information on the server
func (l *LDAPOpsHelper) searchRootDSE(ctx context.Context, h LDAPOpsHandler, baseDN string, searchReq ldap.SearchRequest) (ldap.ServerSearchResult, error) {
	// Only base scope searches allowed if no basedn is provided
	if searchReq.Scope != ldap.ScopeBaseObject {
		return ldap.ServerSearchResult{ResultCode: ldap.LDAPResultUnwillingToPerform}, fmt.Errorf("Search Error: No BaseDN provided")
	}

	h.GetLog().Info().Str("special case", "root DSE").Msg("Search request")
	attrs := []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top"}},
		{Name: "supportedLDAPVersion", Values: []string{"3"}},
		{Name: "namingContexts", Values: []string{baseDN}},
		{Name: "defaultNamingContext", Values: []string{baseDN}},
		{Name: "serverName", Values: []string{"ldapsafe"}},
	}
	entries := []*ldap.Entry{{DN: "", Attributes: attrs}}
	return ldap.ServerSearchResult{Entries: entries, Referrals: []string{}, Controls: []ldap.Control{}, ResultCode: ldap.LDAPResultSuccess}, nil
}

func (l *LDAPOpsHelper) findUser(ctx context.Context, h LDAPOpsHandler, bindDN string) (userWhenFound *config.User, resultCode ldap.LDAPResultCode) {
	baseDN := h.GetBaseDN()

	dn, err := goldap.ParseDN(bindDN)
	if err != nil {
		h.GetLog().Info().Err(err).Str("binddn", bindDN).Msg("invalid BindDN")
		return nil, ldap.LDAPResultInvalidCredentials
	}

	// parse the bindDN - ensure that the bindDN ends with the BaseDN
	if !baseDN.AncestorOfFold(dn) {
		h.GetLog().Info().Str("binddn", bindDN).Str("basedn", h.GetCfg().Directory.BaseDN).Msg("BindDN not part of our BaseDN")
		return nil, ldap.LDAPResultInvalidCredentials
	}

	if len(dn.RDNs) != len(baseDN.RDNs)+2 || !hasType(dn.RDNs[0], "cn") || !hasType(dn.RDNs[1], "ou") {
		h.GetLog().Info().Str("binddn", bindDN).Int("numparts", len(dn.RDNs)).Msg("BindDN should look like cn=<user>,ou=<unit>,<basedn>")
		return nil, ldap.LDAPResultInvalidCredentials
	}

	userName := dn.RDNs[0].Attributes[0].Value
	ou := dn.RDNs[1].Attributes[0].Value

	foundUser, user, _ := h.FindUser(ctx, userName)
	if !foundUser {
		h.GetLog().Info().Str("username", userName).Msg("User not found")
		return nil, ldap.LDAPResultInvalidCredentials
	}

	if !strings.EqualFold(user.OU, ou) {
		h.GetLog().Info().Str("username", userName).Str("ou", ou).Msg("organizational unit mismatch")
		return nil, ldap.LDAPResultInvalidCredentials
	}

	return &user, ldap.LDAPResultSuccess
}

func hasType(rdn *goldap.RelativeDN, attrType string) bool {
	return len(rdn.Attributes) == 1 && strings.EqualFold(rdn.Attributes[0].Type, attrType)
}

// return true if we should not process the current operation
func (l *LDAPOpsHelper) isInTimeout(ctx context.Context, handler LDAPOpsHandler, conn net.Conn) bool {
	cfg := handler.GetCfg()
	if !cfg.Behaviors.LimitFailedBinds {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remoteAddr := l.getAddr(ctx, conn)
	now := l.now()
	info, ok := l.sources[remoteAddr]
	if !ok {
		l.sources[remoteAddr] = &sourceInfo{
			lastSeen:  now,
			failures:  make(chan failedBind, cfg.Behaviors.NumberOfFailedBinds),
			waitUntil: now,
		}
		return false
	}
	// update so that this source does not get pruned
	info.lastSeen = now
	// if we are in a time out...
	return info.waitUntil.After(now)
}

func (l *LDAPOpsHelper) maybePutInTimeout(ctx context.Context, handler LDAPOpsHandler, conn net.Conn) {
	cfg := handler.GetCfg()
	if !cfg.Behaviors.LimitFailedBinds {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	remoteAddr := l.getAddr(ctx, conn)
	now := l.now()
	info, ok := l.sources[remoteAddr]
	if !ok {
		info = &sourceInfo{
			lastSeen:  now,
			failures:  make(chan failedBind, cfg.Behaviors.NumberOfFailedBinds),
			waitUntil: now,
		}
		l.sources[remoteAddr] = info
	}

	info.failures <- failedBind{ts: now}
	// the channel holds at most NumberOfFailedBinds failures
	if len(info.failures) == cfg.Behaviors.NumberOfFailedBinds {
		oldest := <-info.failures
		// too many failures within the period
		if oldest.ts.Add(cfg.Behaviors.PeriodOfFailedBinds * time.Second).After(now) {
			info.waitUntil = now.Add(cfg.Behaviors.BlockFailedBindsFor * time.Second)
			handler.GetLog().Warn().Str("src", remoteAddr).Time("until", info.waitUntil).Msg("too many failed binds, source blocked")
			// purge our failure queue until we resume accepting operations
			for len(info.failures) > 0 {
				<-info.failures
			}
		}
	}

	// Prune old IPs
	if l.nextPruning.Before(now) {
		for sourceIP, source := range l.sources {
			if source.lastSeen.Add(cfg.Behaviors.PruneSourcesOlderThan * time.Second).Before(now) {
				delete(l.sources, sourceIP)
			}
		}
		l.nextPruning = now.Add(cfg.Behaviors.PruneSourceTableEvery * time.Second)
	}
}

func (l *LDAPOpsHelper) getAddr(ctx context.Context, conn net.Conn) string {
	fullAddr := conn.RemoteAddr().String()
	sep := strings.LastIndex(fullAddr, ":")
	if sep == -1 {
		return fullAddr
	}
	return fullAddr[0:sep]
}

func inScope(dn, searchBaseDN *goldap.DN, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return dn.EqualFold(searchBaseDN)
	case ldap.ScopeSingleLevel:
		return len(dn.RDNs) == len(searchBaseDN.RDNs)+1 && searchBaseDN.AncestorOfFold(dn)
	default:
		return dn.EqualFold(searchBaseDN) || searchBaseDN.AncestorOfFold(dn)
	}
}
