package request

import (
	"fmt"
	"net/http"
	"time"

	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
)

// ParseJobFilter builds a job list filter from query parameters: status,
// kind, tenant_id, from and to (RFC 3339).
func ParseJobFilter(r *http.Request) (registry.ListFilter, error) {
	q := r.URL.Query()
	filter := registry.ListFilter{
		Status:   q.Get("status"),
		Kind:     q.Get("kind"),
		TenantID: q.Get("tenant_id"),
	}

	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		return filter, fmt.Errorf("unknown status %q", filter.Status)
	}
	if filter.Kind != "" && !model.ValidKind(filter.Kind) {
		return filter, fmt.Errorf("unknown kind %q", filter.Kind)
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid from timestamp: %w", err)
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid to timestamp: %w", err)
		}
		filter.To = &t
	}
	return filter, nil
}
