package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupd/internal/model"
)

const objectColumns = `id, backup_job_id, key, checksum, size_bytes, replication_status, delete_marked, created_at, updated_at`

// ObjectService persists storage objects. An object belongs to exactly one
// backup job; the job row is the owner and restores never touch these rows.
type ObjectService struct {
	db DB
}

func NewObjectService(db DB) *ObjectService {
	return &ObjectService{db: db}
}

func scanObject(row interface{ Scan(dest ...any) error }) (model.StorageObject, error) {
	var o model.StorageObject
	err := row.Scan(&o.ID, &o.BackupJobID, &o.Key, &o.Checksum, &o.SizeBytes,
		&o.ReplicationStatus, &o.DeleteMarked, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *ObjectService) Create(ctx context.Context, obj *model.StorageObject) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO storage_objects (id, backup_job_id, key, checksum, size_bytes, replication_status, delete_marked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		obj.ID, obj.BackupJobID, obj.Key, obj.Checksum, obj.SizeBytes,
		obj.ReplicationStatus, obj.DeleteMarked, obj.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert storage object: %w", err)
	}
	return nil
}

func (s *ObjectService) UpdateReplication(ctx context.Context, id, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE storage_objects SET replication_status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update replication status of object %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage object %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// MarkDelete flags an object for backend deletion by the reconciler. Used
// for partially uploaded artifacts of failed jobs so nothing dangles.
func (s *ObjectService) MarkDelete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE storage_objects SET delete_marked = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark storage object %s for deletion: %w", id, err)
	}
	return nil
}

// Delete removes the record once the object is gone from every backend.
func (s *ObjectService) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM storage_objects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete storage object %s: %w", id, err)
	}
	return nil
}

func (s *ObjectService) ByJob(ctx context.Context, jobID string) ([]model.StorageObject, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+objectColumns+` FROM storage_objects WHERE backup_job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list objects for job %s: %w", jobID, err)
	}
	return collectObjects(rows)
}

func (s *ObjectService) GetByID(ctx context.Context, id string) (*model.StorageObject, error) {
	row := s.db.QueryRow(ctx, `SELECT `+objectColumns+` FROM storage_objects WHERE id = $1`, id)
	obj, err := scanObject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage object %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get storage object %s: %w", id, err)
	}
	return &obj, nil
}

// PrimaryOnly returns objects awaiting secondary re-replication.
func (s *ObjectService) PrimaryOnly(ctx context.Context, limit int) ([]model.StorageObject, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+objectColumns+` FROM storage_objects
		 WHERE replication_status = $1 AND NOT delete_marked
		 ORDER BY updated_at
		 LIMIT $2`,
		model.ReplicationPrimaryOnly, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list primary-only objects: %w", err)
	}
	return collectObjects(rows)
}

// DeleteMarked returns objects flagged for backend deletion.
func (s *ObjectService) DeleteMarked(ctx context.Context, limit int) ([]model.StorageObject, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+objectColumns+` FROM storage_objects WHERE delete_marked ORDER BY updated_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list delete-marked objects: %w", err)
	}
	return collectObjects(rows)
}

func collectObjects(rows pgx.Rows) ([]model.StorageObject, error) {
	defer rows.Close()

	var objects []model.StorageObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan storage object: %w", err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate storage objects: %w", err)
	}
	return objects, nil
}
