package collector

import (
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

// msDS-SupportedEncryptionTypes bits
const (
	encDESCBCCRC = 0x1
	encDESCBCMD5 = 0x2
	encRC4       = 0x4
	encAES128    = 0x8
	encAES256    = 0x10
)

// EncryptionTypes decodes a Kerberos encryption type mask
func EncryptionTypes(mask int64, set bool) string {
	if !set {
		return "Not set (RC4)"
	}
	var names []string
	if mask&encDESCBCCRC != 0 {
		names = append(names, "DES-CBC-CRC")
	}
	if mask&encDESCBCMD5 != 0 {
		names = append(names, "DES-CBC-MD5")
	}
	if mask&encRC4 != 0 {
		names = append(names, "RC4")
	}
	if mask&encAES128 != 0 {
		names = append(names, "AES128")
	}
	if mask&encAES256 != 0 {
		names = append(names, "AES256")
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

// checkEncryptionTypes flags weak or unset Kerberos encryption for what
func checkEncryptionTypes(env *Env, owner diag.Owner, what string, mask int64, set bool) {
	switch {
	case !set:
		diag.LogInfo(env.Log, owner, "%s has no supported encryption types set; Kerberos defaults to RC4", what)
	case mask&(encAES128|encAES256) == 0 && mask&encRC4 == 0 && mask&(encDESCBCCRC|encDESCBCMD5) != 0:
		diag.LogCritical(env.Log, owner, "%s only supports DES encryption, which is disabled by default on current Windows versions", what)
	case mask&(encAES128|encAES256) == 0:
		diag.LogWarning(env.Log, owner, "%s does not support AES encryption (%s)", what, EncryptionTypes(mask, set))
	}
}

// Trust attribute bits
const (
	trustNonTransitive     = 0x1
	trustUplevelOnly       = 0x2
	trustQuarantined       = 0x4
	trustForestTransitive  = 0x8
	trustCrossOrganization = 0x10
	trustWithinForest      = 0x20
	trustTreatAsExternal   = 0x40
	trustUsesRC4           = 0x80
	trustNoTGTDelegation   = 0x200
	trustPIM               = 0x400
)

// trustType values
const (
	trustTypeDownlevel = 1
	trustTypeUplevel   = 2
	trustTypeMIT       = 3
	trustTypeDCE       = 4
)

// trustDirection values
const (
	trustDirectionDisabled = 0
	trustDirectionInbound  = 1
	trustDirectionOutbound = 2
	trustDirectionTwoWay   = 3
)

// TrustDirection decodes trustDirection
func TrustDirection(v int64) string {
	switch v {
	case trustDirectionDisabled:
		return "Disabled"
	case trustDirectionInbound:
		return "Inbound"
	case trustDirectionOutbound:
		return "Outbound"
	case trustDirectionTwoWay:
		return "Bidirectional"
	default:
		return "Unknown"
	}
}

// TrustType decodes trustType
func TrustType(v int64) string {
	switch v {
	case trustTypeDownlevel:
		return "Downlevel (Windows NT)"
	case trustTypeUplevel:
		return "Uplevel (Active Directory)"
	case trustTypeMIT:
		return "MIT Kerberos realm"
	case trustTypeDCE:
		return "DCE"
	default:
		return "Unknown"
	}
}

// TrustAttributes decodes the trustAttributes bitmask
func TrustAttributes(v int64) string {
	flags := []struct {
		bit  int64
		name string
	}{
		{trustNonTransitive, "Non-Transitive"},
		{trustUplevelOnly, "Uplevel Only"},
		{trustQuarantined, "SID Filtering"},
		{trustForestTransitive, "Forest Transitive"},
		{trustCrossOrganization, "Selective Authentication"},
		{trustWithinForest, "Within Forest"},
		{trustTreatAsExternal, "Treat As External"},
		{trustUsesRC4, "Uses RC4"},
		{trustNoTGTDelegation, "No TGT Delegation"},
		{trustPIM, "PIM Trust"},
	}
	var names []string
	for _, f := range flags {
		if v&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}
