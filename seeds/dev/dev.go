// Seeds a development database with test tenants, a known API key, and a
// daily schedule so the API and worker can be exercised locally.
//
// Usage: go run ./seeds/dev
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	devTenantAcmeID = "tenant_acme_dev_000000000001"
	devTenantBobsID = "tenant_bobs_dev_000000000001"
	devAPIKeyID     = "key_dev_000000000000000000001"
	devScheduleID   = "sched_dev_0000000000000000001"

	// devRawKey is the X-API-Key value for local development. Never seed
	// this into a real environment.
	devRawKey = "backupd_dev_e2e_test_key_00000000"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "error: DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := seed(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("dev seed complete")
	fmt.Printf("  tenants: %s (acme), %s (bobs-burgers)\n", devTenantAcmeID, devTenantBobsID)
	fmt.Printf("  api key: %s\n", devRawKey)
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	tenants := []struct {
		id, name, schema string
	}{
		{devTenantAcmeID, "acme", "tenant_acme"},
		{devTenantBobsID, "bobs-burgers", "tenant_bobs_burgers"},
	}
	for _, tn := range tenants {
		_, err := pool.Exec(ctx,
			`INSERT INTO tenants (id, name, schema_name, created_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (id) DO NOTHING`,
			tn.id, tn.name, tn.schema,
		)
		if err != nil {
			return fmt.Errorf("seed tenant %s: %w", tn.name, err)
		}
	}

	hash := sha256.Sum256([]byte(devRawKey))
	_, err := pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, created_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO NOTHING`,
		devAPIKeyID, "dev", hex.EncodeToString(hash[:]),
	)
	if err != nil {
		return fmt.Errorf("seed api key: %w", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO backup_schedules
		   (id, kind, tenant_id, cron_expression, retention_count, retention_days,
		    enabled, next_run_at, created_at, updated_at)
		 VALUES ($1, 'configuration_only', NULL, '0 2 * * *', 7, NULL, true, now(), now(), now())
		 ON CONFLICT (id) DO NOTHING`,
		devScheduleID,
	)
	if err != nil {
		return fmt.Errorf("seed schedule: %w", err)
	}
	return nil
}
