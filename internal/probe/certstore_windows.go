//go:build windows

package probe

import (
	"context"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

const certFriendlyNamePropID = 11

var (
	modcrypt32                            = windows.NewLazySystemDLL("crypt32.dll")
	procCertGetCertificateContextProperty = modcrypt32.NewProc("CertGetCertificateContextProperty")
)

// WindowsCertStore reads LocalMachine system stores
type WindowsCertStore struct{}

// NewCertStore returns the platform certificate probe
func NewCertStore() CertStore { return WindowsCertStore{} }

// Certificates enumerates a LocalMachine store such as "MY"
func (WindowsCertStore) Certificates(ctx context.Context, store string) ([]Certificate, error) {
	name, err := windows.UTF16PtrFromString(store)
	if err != nil {
		return nil, err
	}
	h, err := windows.CertOpenStore(windows.CERT_STORE_PROV_SYSTEM, 0, 0,
		windows.CERT_SYSTEM_STORE_LOCAL_MACHINE|windows.CERT_STORE_READONLY_FLAG,
		uintptr(unsafe.Pointer(name)))
	if err != nil {
		return nil, fmt.Errorf("open certificate store %s: %w", store, err)
	}
	defer windows.CertCloseStore(h, 0)

	var out []Certificate
	var prev *windows.CertContext
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cc, err := windows.CertEnumCertificatesInStore(h, prev)
		if err != nil {
			if errors.Is(err, windows.Errno(windows.CRYPT_E_NOT_FOUND)) {
				break
			}
			return out, fmt.Errorf("enumerate certificate store %s: %w", store, err)
		}
		if cc == nil {
			break
		}
		prev = cc

		raw := unsafe.Slice(cc.EncodedCert, cc.Length)
		der := make([]byte, len(raw))
		copy(der, raw)
		parsed, err := x509.ParseCertificate(der)
		if err != nil {
			continue
		}
		sum := sha1.Sum(der)
		out = append(out, Certificate{
			Thumbprint:    strings.ToUpper(hex.EncodeToString(sum[:])),
			FriendlyName:  friendlyName(cc),
			HasPrivateKey: hasPrivateKey(cc),
			Cert:          parsed,
		})
	}
	return out, nil
}

func hasPrivateKey(cc *windows.CertContext) bool {
	var key windows.Handle
	var spec uint32
	var mustFree bool
	flags := uint32(windows.CRYPT_ACQUIRE_CACHE_FLAG | windows.CRYPT_ACQUIRE_SILENT_FLAG | windows.CRYPT_ACQUIRE_ALLOW_NCRYPT_KEY_FLAG)
	if err := windows.CryptAcquireCertificatePrivateKey(cc, flags, nil, &key, &spec, &mustFree); err != nil {
		return false
	}
	return true
}

func friendlyName(cc *windows.CertContext) string {
	var size uint32
	r, _, _ := procCertGetCertificateContextProperty.Call(uintptr(unsafe.Pointer(cc)), certFriendlyNamePropID, 0, uintptr(unsafe.Pointer(&size)))
	if r == 0 || size < 2 {
		return ""
	}
	buf := make([]uint16, size/2)
	r, _, _ = procCertGetCertificateContextProperty.Call(uintptr(unsafe.Pointer(cc)), certFriendlyNamePropID,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&size)))
	if r == 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}
