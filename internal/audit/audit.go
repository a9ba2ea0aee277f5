package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/platform"
)

// Recorder is an async audit sink. Every job state transition and every
// confirmation decision is recorded as a structured event. Writes happen on
// a background goroutine so audit never blocks the pipeline.
type Recorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	ch     chan Event
	done   chan struct{}
}

type Event struct {
	Event        string
	BackupJobID  *string
	RestoreJobID *string
	TenantID     *string
	Actor        string
	Detail       map[string]any
}

func NewRecorder(pool *pgxpool.Pool, logger zerolog.Logger) *Recorder {
	r := &Recorder{
		pool:   pool,
		logger: logger.With().Str("component", "audit").Logger(),
		ch:     make(chan Event, 1024),
		done:   make(chan struct{}),
	}
	go r.drain()
	return r
}

func (r *Recorder) drain() {
	defer close(r.done)
	for ev := range r.ch {
		var detail []byte
		if ev.Detail != nil {
			detail, _ = json.Marshal(ev.Detail)
		}
		_, err := r.pool.Exec(
			// context.Background since this is async
			context.Background(),
			`INSERT INTO audit_events (id, event, backup_job_id, restore_job_id, tenant_id, actor, detail, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
			platform.NewID(), ev.Event, ev.BackupJobID, ev.RestoreJobID, ev.TenantID, ev.Actor, detail,
		)
		if err != nil {
			r.logger.Error().Err(err).Str("event", ev.Event).Msg("failed to write audit event")
		}
	}
}

// Record enqueues an event. If the buffer is full the event is logged and
// dropped rather than blocking a state transition.
func (r *Recorder) Record(ev Event) {
	select {
	case r.ch <- ev:
	default:
		r.logger.Warn().Str("event", ev.Event).Msg("audit buffer full, event dropped")
	}
}

// Close drains remaining events and stops the writer.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}
