package dump

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeArgs(t *testing.T) {
	assert.Equal(t, []string{"--scope", "system"}, SystemScope().Args())
	assert.Equal(t, []string{"--scope", "database"}, DatabaseScope().Args())
	assert.Equal(t, []string{"--scope", "configuration"}, ConfigurationScope().Args())
	assert.Equal(t, []string{"--scope", "tenant", "--schema", "tenant_acme"}, TenantScope("tenant_acme").Args())
}

func TestScopeIsTenant(t *testing.T) {
	assert.True(t, TenantScope("tenant_acme").IsTenant())
	assert.False(t, SystemScope().IsTenant())
	assert.False(t, DatabaseScope().IsTenant())
}
