package request

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePagination_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/backups", nil)
	p := ParsePagination(r)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Empty(t, p.Cursor)
}

func TestParsePagination_Capped(t *testing.T) {
	r := httptest.NewRequest("GET", "/backups?limit=9999&cursor=abc", nil)
	p := ParsePagination(r)
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, "abc", p.Cursor)
}

func TestParsePagination_IgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/backups?limit=lots", nil)
	assert.Equal(t, DefaultLimit, ParsePagination(r).Limit)

	r = httptest.NewRequest("GET", "/backups?limit=-5", nil)
	assert.Equal(t, DefaultLimit, ParsePagination(r).Limit)
}

func TestParseJobFilter_AllFields(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/backups?status=completed&kind=tenant_schema&tenant_id=t-acme&from=2026-03-01T00:00:00Z&to=2026-03-10T00:00:00Z", nil)

	filter, err := ParseJobFilter(r)
	require.NoError(t, err)

	assert.Equal(t, "completed", filter.Status)
	assert.Equal(t, "tenant_schema", filter.Kind)
	assert.Equal(t, "t-acme", filter.TenantID)
	require.NotNil(t, filter.From)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), filter.From.UTC())
	require.NotNil(t, filter.To)
}

func TestParseJobFilter_RejectsUnknownValues(t *testing.T) {
	r := httptest.NewRequest("GET", "/backups?status=exploded", nil)
	_, err := ParseJobFilter(r)
	require.Error(t, err)

	r = httptest.NewRequest("GET", "/backups?kind=everything", nil)
	_, err = ParseJobFilter(r)
	require.Error(t, err)

	r = httptest.NewRequest("GET", "/backups?from=yesterday", nil)
	_, err = ParseJobFilter(r)
	require.Error(t, err)
}

func TestDecode_CronValidation(t *testing.T) {
	var req CreateSchedule
	r := httptest.NewRequest("POST", "/schedules",
		strings.NewReader(`{"kind":"full_system","cron_expression":"0 2 * * *"}`))
	require.NoError(t, Decode(r, &req))

	r = httptest.NewRequest("POST", "/schedules",
		strings.NewReader(`{"kind":"full_system","cron_expression":"0 2 * *"}`))
	require.Error(t, Decode(r, &req))
}
