package e2e

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleCRUD(t *testing.T) {
	resp, body := httpPost(t, apiURL+"/schedules", map[string]interface{}{
		"kind":            "configuration_only",
		"cron_expression": "0 3 * * *",
		"retention_count": 7,
	})
	require.Equal(t, 201, resp.StatusCode, "create schedule: %s", body)
	sched := parseJSON(t, body)
	schedID := sched["id"].(string)
	require.Equal(t, true, sched["enabled"])
	require.NotEmpty(t, sched["next_run_at"], "next_run_at should be computed on create")

	resp, body = httpGet(t, apiURL+"/schedules")
	require.Equal(t, 200, resp.StatusCode, body)
	found := false
	for _, item := range parsePaginatedItems(t, body) {
		if item["id"] == schedID {
			found = true
		}
	}
	require.True(t, found, "created schedule missing from list")

	resp, body = httpPut(t, apiURL+"/schedules/"+schedID, map[string]interface{}{
		"cron_expression": "30 4 * * *",
		"retention_days":  14,
	})
	require.Equal(t, 200, resp.StatusCode, "update schedule: %s", body)
	updated := parseJSON(t, body)
	require.Equal(t, "30 4 * * *", updated["cron_expression"])

	resp, _ = httpPost(t, apiURL+"/schedules/"+schedID+"/disable", nil)
	require.Equal(t, 204, resp.StatusCode)

	resp, body = httpGet(t, apiURL+"/schedules/"+schedID)
	require.Equal(t, 200, resp.StatusCode, body)
	require.Equal(t, false, parseJSON(t, body)["enabled"])

	resp, _ = httpPost(t, apiURL+"/schedules/"+schedID+"/enable", nil)
	require.Equal(t, 204, resp.StatusCode)
}

func TestScheduleRejectsBadCron(t *testing.T) {
	resp, body := httpPost(t, apiURL+"/schedules", map[string]interface{}{
		"kind":            "full_system",
		"cron_expression": "not a cron",
	})
	require.Equal(t, 400, resp.StatusCode, body)
}

func TestStorageHealth(t *testing.T) {
	resp, body := httpGet(t, apiURL+"/storage/health")
	require.Equal(t, 200, resp.StatusCode, body)
	health := parseJSON(t, body)
	_, hasPrimary := health["primary"]
	require.True(t, hasPrimary, "health missing primary backend: %s", body)
	_, hasSecondary := health["secondary"]
	require.True(t, hasSecondary, "health missing secondary backend: %s", body)
}
