package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPOptions configures the directory probe
type LDAPOptions struct {
	// DomainController pins the server; empty resolves _ldap._tcp SRV records
	DomainController string
	User             string
	Password         string
	Timeout          time.Duration
}

// LDAPDirectory implements Directory over go-ldap, holding one bound
// connection per domain.
type LDAPDirectory struct {
	opts     LDAPOptions
	resolver *net.Resolver

	mu    sync.Mutex
	conns map[string]*ldap.Conn
}

// NewLDAPDirectory returns a directory probe; connections open lazily
func NewLDAPDirectory(opts LDAPOptions) *LDAPDirectory {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &LDAPDirectory{
		opts:     opts,
		resolver: net.DefaultResolver,
		conns:    make(map[string]*ldap.Conn),
	}
}

// Close unbinds every open connection
func (d *LDAPDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, c := range d.conns {
		c.Close()
		delete(d.conns, name)
	}
	return nil
}

func (d *LDAPDirectory) conn(ctx context.Context, domain string) (*ldap.Conn, error) {
	key := strings.ToLower(domain)
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conns[key]; ok {
		return c, nil
	}

	dc := d.opts.DomainController
	if dc == "" {
		dc = d.resolveDomainController(ctx, domain)
	}
	c, err := d.connect(dc, domain)
	if err != nil {
		return nil, err
	}
	d.conns[key] = c
	return c, nil
}

func (d *LDAPDirectory) resolveDomainController(ctx context.Context, domain string) string {
	_, addrs, err := d.resolver.LookupSRV(ctx, "ldap", "tcp", domain)
	if err == nil && len(addrs) > 0 {
		return strings.TrimSuffix(addrs[0].Target, ".")
	}
	return domain
}

// connect tries LDAPS, then StartTLS, then plain LDAP, binding on each
func (d *LDAPDirectory) connect(dc, domain string) (*ldap.Conn, error) {
	serverName := dc
	if !strings.Contains(serverName, ".") && domain != "" {
		serverName = dc + "." + domain
	}
	tlsConfig := &tls.Config{ServerName: serverName, InsecureSkipVerify: true}

	var failures []string
	attempt := func(label string, dial func() (*ldap.Conn, error)) *ldap.Conn {
		c, err := dial()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s connect: %v", label, err))
			return nil
		}
		c.SetTimeout(d.opts.Timeout)
		if err := d.bind(c, serverName, domain); err != nil {
			failures = append(failures, fmt.Sprintf("%s bind: %v", label, err))
			c.Close()
			return nil
		}
		return c
	}

	if c := attempt("LDAPS:636", func() (*ldap.Conn, error) {
		return ldap.DialURL("ldaps://"+net.JoinHostPort(dc, "636"), ldap.DialWithTLSConfig(tlsConfig))
	}); c != nil {
		return c, nil
	}
	if c := attempt("LDAP:389+StartTLS", func() (*ldap.Conn, error) {
		c, err := ldap.DialURL("ldap://" + net.JoinHostPort(dc, "389"))
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	}); c != nil {
		return c, nil
	}
	if c := attempt("LDAP:389", func() (*ldap.Conn, error) {
		return ldap.DialURL("ldap://" + net.JoinHostPort(dc, "389"))
	}); c != nil {
		return c, nil
	}

	return nil, fmt.Errorf("all LDAP connection methods failed for %s: %s", domain, strings.Join(failures, "; "))
}

func (d *LDAPDirectory) bind(c *ldap.Conn, serverName, domain string) error {
	if d.opts.User != "" && d.opts.Password != "" {
		userDomain, user := splitDomainUser(d.opts.User, domain)
		if err := c.NTLMBind(userDomain, user, d.opts.Password); err == nil {
			return nil
		} else if isLDAPAuthError(err) {
			// Retrying with bad credentials counts toward lockout
			return err
		}
		upn := d.opts.User
		if !strings.Contains(upn, "@") {
			upn = user + "@" + userDomain
		}
		return c.Bind(upn, d.opts.Password)
	}

	gss, closeFn, err := newGSSAPIClient(domain, d.opts.User, d.opts.Password)
	if err != nil {
		return err
	}
	defer closeFn()
	return c.GSSAPIBind(gss, "ldap/"+strings.ToLower(serverName), "")
}

func isLDAPAuthError(err error) bool {
	return ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials)
}

func splitDomainUser(user, fallbackDomain string) (string, string) {
	if domain, name, ok := strings.Cut(user, `\`); ok {
		return domain, name
	}
	if name, domain, ok := strings.Cut(user, "@"); ok {
		return domain, name
	}
	return fallbackDomain, user
}

// search runs a paged subtree search
func search(c *ldap.Conn, baseDN, filter string, attrs []string) ([]*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attrs,
		nil,
	)
	res, err := c.SearchWithPaging(req, 1000)
	if err != nil {
		return nil, fmt.Errorf("LDAP search %s failed: %w", filter, err)
	}
	return res.Entries, nil
}

func (d *LDAPDirectory) rootDSE(c *ldap.Conn) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest("", ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)", []string{"defaultNamingContext", "rootDomainNamingContext", "configurationNamingContext"}, nil)
	res, err := c.Search(req)
	if err != nil {
		return nil, fmt.Errorf("read rootDSE: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("read rootDSE: %w", ErrNotFound)
	}
	return res.Entries[0], nil
}

// Domain resolves a domain's names, its parent and its forest root
func (d *LDAPDirectory) Domain(ctx context.Context, name string) (*DomainInfo, error) {
	c, err := d.conn(ctx, name)
	if err != nil {
		return nil, err
	}
	root, err := d.rootDSE(c)
	if err != nil {
		return nil, err
	}

	info := &DomainInfo{
		Name:   strings.ToLower(name),
		DN:     root.GetAttributeValue("defaultNamingContext"),
		Forest: dnToDomain(root.GetAttributeValue("rootDomainNamingContext")),
	}
	if info.DN == "" {
		info.DN = domainToDN(name)
	}
	if dns := dnToDomain(info.DN); dns != "" {
		info.Name = dns
	}

	config := root.GetAttributeValue("configurationNamingContext")
	if config != "" {
		refs, err := search(c, "CN=Partitions,"+config,
			fmt.Sprintf("(&(objectClass=crossRef)(nCName=%s))", ldap.EscapeFilter(info.DN)),
			[]string{"nETBIOSName", "trustParent"})
		if err == nil && len(refs) > 0 {
			info.ShortName = refs[0].GetAttributeValue("nETBIOSName")
			if parent := refs[0].GetAttributeValue("trustParent"); parent != "" {
				info.Parent = crossRefDomain(parent)
			}
		}
	}

	dom, err := search(c, info.DN, "(objectClass=domainDNS)", []string{"msDS-SupportedEncryptionTypes"})
	if err == nil && len(dom) > 0 {
		info.EncryptionTypes, info.HasEncTypes = intAttr(dom[0], "msDS-SupportedEncryptionTypes")
	}
	return info, nil
}

// Trusts lists the trustedDomain objects of a domain
func (d *LDAPDirectory) Trusts(ctx context.Context, domain string) ([]Trust, error) {
	c, err := d.conn(ctx, domain)
	if err != nil {
		return nil, err
	}
	entries, err := search(c, "CN=System,"+domainToDN(domain), "(objectClass=trustedDomain)",
		[]string{"trustPartner", "flatName", "trustDirection", "trustType", "trustAttributes", "msDS-SupportedEncryptionTypes"})
	if err != nil {
		return nil, err
	}

	trusts := make([]Trust, 0, len(entries))
	for _, e := range entries {
		t := Trust{
			Partner:  e.GetAttributeValue("trustPartner"),
			FlatName: e.GetAttributeValue("flatName"),
		}
		t.Direction, _ = intAttr(e, "trustDirection")
		t.Type, _ = intAttr(e, "trustType")
		t.Attributes, _ = intAttr(e, "trustAttributes")
		t.EncryptionTypes, t.HasEncTypes = intAttr(e, "msDS-SupportedEncryptionTypes")
		trusts = append(trusts, t)
	}
	return trusts, nil
}

// Account finds an account by DOMAIN\name, name@domain or bare name
func (d *LDAPDirectory) Account(ctx context.Context, domain, account string) (*Account, error) {
	c, err := d.conn(ctx, domain)
	if err != nil {
		return nil, err
	}
	_, sam := splitDomainUser(account, domain)
	entries, err := search(c, domainToDN(domain),
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(sam)),
		[]string{"sAMAccountName", "distinguishedName", "userAccountControl", "servicePrincipalName",
			"msDS-AllowedToDelegateTo", "msDS-SupportedEncryptionTypes"})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("account %s: %w", account, ErrNotFound)
	}

	e := entries[0]
	acct := &Account{
		SAMAccountName:      e.GetAttributeValue("sAMAccountName"),
		DN:                  e.DN,
		SPNs:                e.GetAttributeValues("servicePrincipalName"),
		AllowedToDelegateTo: e.GetAttributeValues("msDS-AllowedToDelegateTo"),
	}
	acct.UserAccountControl, _ = intAttr(e, "userAccountControl")
	acct.EncryptionTypes, acct.HasEncTypes = intAttr(e, "msDS-SupportedEncryptionTypes")
	return acct, nil
}

// SPNOwners lists the accounts carrying spn
func (d *LDAPDirectory) SPNOwners(ctx context.Context, domain, spn string) ([]string, error) {
	c, err := d.conn(ctx, domain)
	if err != nil {
		return nil, err
	}
	entries, err := search(c, domainToDN(domain),
		fmt.Sprintf("(servicePrincipalName=%s)", ldap.EscapeFilter(spn)),
		[]string{"sAMAccountName"})
	if err != nil {
		return nil, err
	}
	owners := make([]string, 0, len(entries))
	for _, e := range entries {
		owners = append(owners, e.GetAttributeValue("sAMAccountName"))
	}
	return owners, nil
}

func intAttr(e *ldap.Entry, name string) (int64, bool) {
	v := e.GetAttributeValue(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// domainToDN converts a domain name to an LDAP distinguished name
func domainToDN(domain string) string {
	parts := strings.Split(domain, ".")
	dnParts := make([]string, 0, len(parts))
	for _, part := range parts {
		dnParts = append(dnParts, "DC="+part)
	}
	return strings.Join(dnParts, ",")
}

// dnToDomain converts DC=contoso,DC=com to contoso.com
func dnToDomain(dn string) string {
	var labels []string
	for _, rdn := range strings.Split(dn, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(rdn), "=")
		if ok && strings.EqualFold(k, "DC") {
			labels = append(labels, strings.ToLower(v))
		}
	}
	return strings.Join(labels, ".")
}

// crossRefDomain maps a crossRef DN (CN=CONTOSO,CN=Partitions,...) to a
// domain name using the naming convention of the first RDN
func crossRefDomain(dn string) string {
	first, _, _ := strings.Cut(dn, ",")
	_, name, _ := strings.Cut(first, "=")
	return strings.ToLower(name)
}
