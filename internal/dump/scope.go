package dump

// Scope identifies what a dump or restore covers. Fields are unexported:
// a tenant scope can only be built through TenantScope from a resolved
// tenant record, so an invocation can never name another tenant's schema or
// system-wide data by accident.
type Scope struct {
	kind         string
	tenantSchema string
}

func SystemScope() Scope        { return Scope{kind: "system"} }
func DatabaseScope() Scope      { return Scope{kind: "database"} }
func ConfigurationScope() Scope { return Scope{kind: "configuration"} }

// TenantScope covers exactly one tenant's schema.
func TenantScope(schemaName string) Scope {
	return Scope{kind: "tenant", tenantSchema: schemaName}
}

// IsTenant reports whether the scope covers a single tenant.
func (s Scope) IsTenant() bool { return s.kind == "tenant" }

// Args renders the scope as tool arguments.
func (s Scope) Args() []string {
	args := []string{"--scope", s.kind}
	if s.kind == "tenant" {
		args = append(args, "--schema", s.tenantSchema)
	}
	return args
}
