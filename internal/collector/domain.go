package collector

import (
	"context"
	"strings"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/dataset"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/diag"
	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/probe"
)

// computerDomain is the DNS domain the computer belongs to
func computerDomain(env *Env, comp *dataset.Row) string {
	if d := comp.GetString("DomainOrWorkgroup"); strings.Contains(d, ".") {
		return strings.ToLower(d)
	}
	if d := comp.GetString("DNSSuffix"); d != "" {
		return strings.ToLower(d)
	}
	return strings.ToLower(env.Probes.Env("USERDNSDOMAIN"))
}

func collectDomain(ctx context.Context, env *Env) {
	comp := env.computer()
	if comp == nil || !comp.GetBoolean("JoinedToDomain") {
		return
	}

	name := computerDomain(env, comp)
	if name == "" {
		diag.LogWarning(env.Log, comp, "Computer is domain joined but the domain name could not be determined")
		return
	}

	info, err := env.Probes.Directory.Domain(ctx, name)
	if err != nil {
		diag.LogException(env.Log, comp, err, "Could not contact domain %s", name)
		return
	}
	comp.Set("ConnectedToDomain", true)

	row := env.DS.Table(dataset.TableDomain).NewChildRow(comp)
	root := info.Forest
	if root == "" {
		root = info.Name
	}
	row.Set("DomainName", info.Name)
	row.Set("DomainShortName", info.ShortName)
	row.Set("ParentDomain", info.Parent)
	row.Set("ForestName", info.Forest)
	row.Set("RootDomain", root)
	row.Set("DomainDN", info.DN)
	row.Set("SupportedEncryptionTypes", EncryptionTypes(info.EncryptionTypes, info.HasEncTypes))
	if info.HasEncTypes {
		checkEncryptionTypes(env, row, "Domain "+info.Name, info.EncryptionTypes, true)
	}

	trusts, err := env.Probes.Directory.Trusts(ctx, info.Name)
	if err != nil {
		diag.LogException(env.Log, row, err, "Failed to enumerate trusts of %s", info.Name)
	}
	for _, t := range trusts {
		addTrustRow(env, dataset.TableRelatedDomain, row, info.Name, t)
	}

	if strings.EqualFold(root, info.Name) {
		addForestTrusts(env, row, root, trusts)
		return
	}
	rootTrusts, err := env.Probes.Directory.Trusts(ctx, root)
	if err != nil {
		diag.LogException(env.Log, row, err, "Failed to enumerate trusts of root domain %s", root)
		return
	}
	for _, t := range rootTrusts {
		addTrustRow(env, dataset.TableRootDomainRelatedDomain, row, root, t)
	}
	addForestTrusts(env, row, root, rootTrusts)
}

// addForestTrusts records the forest-transitive trusts of the root domain
func addForestTrusts(env *Env, parent *dataset.Row, root string, trusts []probe.Trust) {
	for _, t := range trusts {
		if t.Attributes&trustForestTransitive != 0 {
			addTrustRow(env, dataset.TableForestRelatedDomain, parent, root, t)
		}
	}
}

func addTrustRow(env *Env, table string, parent *dataset.Row, source string, t probe.Trust) {
	row := env.DS.Table(table).NewChildRow(parent)
	row.Set("SourceDomain", source)
	row.Set("TargetDomain", t.Partner)
	row.Set("TargetShortName", t.FlatName)
	row.Set("TrustDirection", TrustDirection(t.Direction))
	row.Set("TrustType", TrustType(t.Type))
	row.Set("TrustAttributes", TrustAttributes(t.Attributes))
	row.Set("Transitive", t.Attributes&trustNonTransitive == 0 && t.Type != trustTypeDownlevel)
	row.Set("SelectiveAuthentication", t.Attributes&trustCrossOrganization != 0)
	row.Set("SupportedEncryptionTypes", EncryptionTypes(t.EncryptionTypes, t.HasEncTypes))
	checkEncryptionTypes(env, row, "Trust to "+t.Partner, t.EncryptionTypes, t.HasEncTypes)
}
