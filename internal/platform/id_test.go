package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_ReturnsValidUUIDString(t *testing.T) {
	id := NewID()
	assert.NotEmpty(t, id)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`, id)
}

func TestNewID_ReturnsUniqueValues(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.False(t, seen[id], "duplicate ID generated: %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func TestObjectKey(t *testing.T) {
	tenant := "t-acme"
	assert.Equal(t, "backups/tenant_schema/t-acme/job-1.dump", ObjectKey("tenant_schema", &tenant, "job-1"))
	assert.Equal(t, "backups/full_system/system/job-2.dump", ObjectKey("full_system", nil, "job-2"))
}
