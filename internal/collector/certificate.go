package collector

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

const certStoreMy = "MY"

// HostMatches reports whether a certificate name matches host. A leading
// "*." matches exactly one label.
func HostMatches(pattern, host string) bool {
	pattern = strings.ToLower(strings.TrimSuffix(pattern, "."))
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if pattern == "" || host == "" {
		return false
	}
	if rest, ok := strings.CutPrefix(pattern, "*."); ok {
		_, hostRest, found := strings.Cut(host, ".")
		return found && hostRest == rest
	}
	return pattern == host
}

// certNames returns the subject CN followed by the DNS SANs
func certNames(c *x509.Certificate) []string {
	var names []string
	if c.Subject.CommonName != "" {
		names = append(names, c.Subject.CommonName)
	}
	return append(names, c.DNSNames...)
}

// certMatches reports whether any name on c matches host
func certMatches(c *x509.Certificate, host string) bool {
	for _, n := range certNames(c) {
		if HostMatches(n, host) {
			return true
		}
	}
	return false
}

func keySize(c *x509.Certificate) int64 {
	switch k := c.PublicKey.(type) {
	case *rsa.PublicKey:
		return int64(k.N.BitLen())
	case *ecdsa.PublicKey:
		return int64(k.Curve.Params().BitSize)
	default:
		return 0
	}
}

func hasServerAuth(c *x509.Certificate) bool {
	if len(c.ExtKeyUsage) == 0 && len(c.UnknownExtKeyUsage) == 0 {
		return true
	}
	for _, u := range c.ExtKeyUsage {
		if u == x509.ExtKeyUsageServerAuth || u == x509.ExtKeyUsageAny {
			return true
		}
	}
	return false
}

func collectCertificates(ctx context.Context, env *Env) {
	comp := env.computer()
	tbl := env.DS.Table(dataset.TableCertificate)

	certs, err := env.Probes.Certs.Certificates(ctx, certStoreMy)
	if err != nil {
		if !errors.Is(err, probe.ErrUnsupported) {
			diag.LogException(env.Log, tbl, err, "Failed to open the local machine %s certificate store", certStoreMy)
		}
		return
	}

	fqdn := ""
	if comp != nil {
		fqdn = comp.GetString("FQDN")
	}
	for _, pc := range certs {
		c := pc.Cert
		if c == nil {
			continue
		}
		row := tbl.NewChildRow(comp)
		size := keySize(c)
		row.Set("Thumbprint", pc.Thumbprint)
		row.Set("Subject", c.Subject.String())
		row.Set("FriendlyName", pc.FriendlyName)
		row.Set("Issuer", c.Issuer.String())
		row.Set("NotBefore", c.NotBefore)
		row.Set("NotAfter", c.NotAfter)
		row.Set("HasPrivateKey", pc.HasPrivateKey)
		row.Set("ServerAuthEKU", hasServerAuth(c))
		row.Set("SubjectAlternativeNames", c.DNSNames)
		row.Set("SignatureAlgorithm", c.SignatureAlgorithm.String())
		row.Set("KeySize", size)
		row.Set("FQDNMatch", fqdn != "" && certMatches(c, fqdn))

		switch c.SignatureAlgorithm {
		case x509.SHA1WithRSA, x509.ECDSAWithSHA1, x509.DSAWithSHA1, x509.MD5WithRSA, x509.MD2WithRSA:
			diag.LogWarning(env.Log, row, "Certificate %s is signed with %s; clients may reject it", pc.Thumbprint, c.SignatureAlgorithm)
		}
		if _, ok := c.PublicKey.(*rsa.PublicKey); ok && size < 2048 {
			diag.LogWarning(env.Log, row, "Certificate %s has a %d-bit RSA key, below 2048 bits", pc.Thumbprint, size)
		}
	}
}
