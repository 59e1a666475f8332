package collector

import (
	"context"
	"strconv"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
)

const (
	keyLsa                = `SYSTEM\CurrentControlSet\Control\Lsa`
	keyMSV10              = `SYSTEM\CurrentControlSet\Control\Lsa\MSV1_0`
	keyFIPS               = `SYSTEM\CurrentControlSet\Control\Lsa\FipsAlgorithmPolicy`
	keyKerberosParameters = `SYSTEM\CurrentControlSet\Control\Lsa\Kerberos\Parameters`
	keyKerberosPolicy     = `SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System\Kerberos\Parameters`
	keyCipherSuitePolicy  = `SOFTWARE\Policies\Microsoft\Cryptography\Configuration\SSL\00010002`
	keyDeviceGuard        = `SYSTEM\CurrentControlSet\Control\DeviceGuard`

	defaultLmCompatibilityLevel = 3
	defaultMaxTokenSize         = 48000
)

func collectSecurity(ctx context.Context, env *Env) {
	row := env.DS.Table(dataset.TableSecurity).NewChildRow(env.computer())
	reg := env.reg(row)

	// LAN Manager authentication level
	lm := reg.Raw(keyLsa, "LmCompatibilityLevel")
	if lm == "" {
		lm = strconv.Itoa(defaultLmCompatibilityLevel)
	}
	level := diag.CheckRange(env.Log, row, "LmCompatibilityLevel", lm, 0, 5)
	row.Set("LanmanCompatibilityLevel", level)
	if level < 3 {
		diag.LogWarning(env.Log, row, "LmCompatibilityLevel %d allows LM or NTLMv1 responses; set it to 3 or higher", level)
	}

	loopback := reg.Flag(keyLsa, "DisableLoopbackCheck")
	row.Set("DisableLoopbackCheck", loopback)
	hosts := reg.Strings(keyMSV10, "BackConnectionHostNames")
	row.Set("BackConnectionHostNames", hosts)
	if loopback {
		diag.LogInfo(env.Log, row, "DisableLoopbackCheck is set; NTLM loopback protection is off for all host names")
	}

	crash, _ := reg.Int(keyLsa, "CrashOnAuditFail")
	row.Set("CrashOnAuditFail", crash)
	if crash == 2 {
		diag.LogCritical(env.Log, row, "CrashOnAuditFail is 2: the security log filled up and only administrators can log on until it is cleared")
	}

	sending, _ := reg.Int(keyMSV10, "RestrictSendingNTLMTraffic")
	receiving, _ := reg.Int(keyMSV10, "RestrictReceivingNTLMTraffic")
	row.Set("RestrictSendingNTLM", sending)
	row.Set("RestrictReceivingNTLM", receiving)
	if sending == 2 {
		diag.LogWarning(env.Log, row, "Outgoing NTLM traffic is denied; connections that cannot use Kerberos will fail")
	}
	if receiving == 2 {
		diag.LogWarning(env.Log, row, "Incoming NTLM traffic is denied; clients that cannot use Kerberos will fail to log on")
	}

	guard := false
	if v, ok := reg.Int(keyLsa, "LsaCfgFlags"); ok && (v == 1 || v == 2) {
		guard = true
	} else if v, ok := reg.Int(keyDeviceGuard, "EnableVirtualizationBasedSecurity"); ok && v == 1 {
		guard = reg.Flag(keyDeviceGuard, "RequirePlatformSecurityFeatures")
	}
	row.Set("CredentialGuard", guard)
	if guard {
		diag.LogInfo(env.Log, row, "Credential Guard is enabled; NTLMv1, unconstrained delegation and DES are blocked")
	}

	fips := reg.Flag(keyFIPS, "Enabled")
	row.Set("FIPSEnabled", fips)
	if fips {
		diag.LogInfo(env.Log, row, "FIPS mode is enabled; only FIPS-compliant algorithms are used")
	}

	// Kerberos
	if raw := reg.Raw(keyKerberosParameters, "MaxTokenSize"); raw != "" {
		size := diag.CheckRange(env.Log, row, "MaxTokenSize", raw, 12000, 65535)
		row.Set("KerberosMaxTokenSize", size)
		if size < defaultMaxTokenSize {
			diag.LogWarning(env.Log, row, "Kerberos MaxTokenSize %d is below the default %d; users in many groups may fail to authenticate", size, defaultMaxTokenSize)
		}
	} else {
		row.Set("KerberosMaxTokenSize", defaultMaxTokenSize)
	}
	logLevel, _ := reg.Int(keyKerberosParameters, "LogLevel")
	row.Set("KerberosLogLevel", logLevel)
	if logLevel != 0 {
		diag.LogVerbose(env.Log, row, "Kerberos event logging is enabled")
	}

	enc, set := reg.Int(keyKerberosPolicy, "SupportedEncryptionTypes")
	row.Set("KerberosEncryptionTypes", EncryptionTypes(enc, set))
	if set {
		checkEncryptionTypes(env, row, "This computer", enc, true)
	}

	// Cipher suite order policy
	functions, _ := reg.String(keyCipherSuitePolicy, "Functions")
	suites := splitCipherSuites(functions)
	row.Set("CipherSuitePolicyCount", len(suites))
	if len(suites) > 0 {
		ecdhe := false
		for _, s := range suites {
			if strings.Contains(strings.ToUpper(s), "ECDHE") {
				ecdhe = true
				break
			}
		}
		if !ecdhe {
			diag.LogWarning(env.Log, row, "The cipher suite policy lists %d suites and none use ECDHE; TLS 1.2 connections to current servers may fail", len(suites))
		}
	}
}

func splitCipherSuites(functions string) []string {
	var out []string
	for _, s := range strings.Split(functions, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
