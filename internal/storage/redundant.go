package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/model"
)

// Checkpoint is invoked between pipeline steps with the new progress value.
// Returning an error (cancellation, transition failure) aborts the
// operation before its next step; a step in flight is never interrupted.
type Checkpoint func(progress int) error

// UploadResult describes one completed redundant write.
type UploadResult struct {
	Checksum          string
	SizeBytes         int64
	ReplicationStatus string
	// Warning carries a non-fatal secondary failure. The upload as a whole
	// still succeeded; reconciliation will finish the copy later.
	Warning error
}

// Store writes every object to two independent backends. The primary is
// authoritative: its failure fails the operation, while a secondary failure
// only degrades replication_status.
type Store struct {
	primary     Backend
	secondary   Backend
	logger      zerolog.Logger
	stepTimeout time.Duration
}

func NewStore(primary, secondary Backend, logger zerolog.Logger, stepTimeout time.Duration) *Store {
	return &Store{
		primary:     primary,
		secondary:   secondary,
		logger:      logger.With().Str("component", "storage").Logger(),
		stepTimeout: stepTimeout,
	}
}

func (s *Store) Primary() Backend   { return s.primary }
func (s *Store) Secondary() Backend { return s.secondary }

// Upload streams r to both backends under key. The stream is spooled to a
// temp file first so the checksum is known before any write and both
// backends receive identical bytes. Progress checkpoints: 70 after the
// primary write, 90 after the secondary write, 100 after verification.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, cp Checkpoint) (*UploadResult, error) {
	spool, checksum, size, err := spoolToTemp(r)
	if err != nil {
		return nil, fmt.Errorf("spool upload for %s: %w", key, err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	result := &UploadResult{Checksum: checksum, SizeBytes: size, ReplicationStatus: model.ReplicationPending}

	if err := s.putSpool(ctx, s.primary, key, spool, size); err != nil {
		return result, fmt.Errorf("%w: %s", model.ErrUploadFailure, err)
	}
	result.ReplicationStatus = model.ReplicationPrimaryOnly
	if err := cp(70); err != nil {
		return result, err
	}

	if err := s.putSpool(ctx, s.secondary, key, spool, size); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("secondary write failed, scheduling reconciliation")
		result.Warning = fmt.Errorf("%w: %s", model.ErrReplicationWarning, err)
	}
	if err := cp(90); err != nil {
		return result, err
	}

	// Independent read-back verification on each backend. Only a verified
	// primary counts; only verified copies on both sides reach "both".
	if err := s.verify(ctx, s.primary, key, checksum); err != nil {
		return result, fmt.Errorf("%w: verify primary: %s", model.ErrUploadFailure, err)
	}
	if result.Warning == nil {
		if err := s.verify(ctx, s.secondary, key, checksum); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("secondary verification failed, scheduling reconciliation")
			result.Warning = fmt.Errorf("%w: %s", model.ErrReplicationWarning, err)
		} else {
			result.ReplicationStatus = model.ReplicationBoth
		}
	}

	if err := cp(100); err != nil {
		return result, err
	}
	return result, nil
}

// Download fetches the object, verifying its checksum. Primary is tried
// first; a missing or corrupt primary copy falls back to the secondary
// transparently, also verified. Only when no backend can produce matching
// bytes does the read fail with ErrIntegrityMismatch.
func (s *Store) Download(ctx context.Context, key, checksum string) (io.ReadCloser, error) {
	for _, backend := range []Backend{s.primary, s.secondary} {
		rc, err := s.fetchVerified(ctx, backend, key, checksum)
		if err != nil {
			s.logger.Warn().Err(err).Str("backend", backend.Name()).Str("key", key).
				Msg("verified read failed, trying next source")
			continue
		}
		return rc, nil
	}
	return nil, fmt.Errorf("no backend holds a verified copy of %s: %w", key, model.ErrIntegrityMismatch)
}

// ReplicateToSecondary copies a verified primary object to the secondary.
// Used by the reconciler for primary_only objects.
func (s *Store) ReplicateToSecondary(ctx context.Context, key, checksum string) error {
	rc, err := s.fetchVerified(ctx, s.primary, key, checksum)
	if err != nil {
		return fmt.Errorf("read primary for reconciliation: %w", err)
	}
	defer rc.Close()

	spool, gotChecksum, size, err := spoolToTemp(rc)
	if err != nil {
		return fmt.Errorf("spool reconciliation copy: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()
	if gotChecksum != checksum {
		return fmt.Errorf("primary copy of %s changed under reconciliation: %w", key, model.ErrIntegrityMismatch)
	}

	if err := s.putSpool(ctx, s.secondary, key, spool, size); err != nil {
		return err
	}
	return s.verify(ctx, s.secondary, key, checksum)
}

// DeleteFrom removes the object from one backend.
func (s *Store) DeleteFrom(ctx context.Context, backend Backend, key string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()
	return backend.Delete(stepCtx, key)
}

func (s *Store) DeletePrimary(ctx context.Context, key string) error {
	return s.DeleteFrom(ctx, s.primary, key)
}

func (s *Store) DeleteSecondary(ctx context.Context, key string) error {
	return s.DeleteFrom(ctx, s.secondary, key)
}

func (s *Store) putSpool(ctx context.Context, backend Backend, key string, spool *os.File, size int64) error {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool: %w", err)
	}
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()
	return backend.Put(stepCtx, key, spool, size)
}

func (s *Store) verify(ctx context.Context, backend Backend, key, checksum string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	rc, err := backend.Get(stepCtx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, rc); err != nil {
		return fmt.Errorf("read back %s from %s: %w", key, backend.Name(), err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != checksum {
		return fmt.Errorf("checksum of %s on %s is %s, want %s: %w",
			key, backend.Name(), got, checksum, model.ErrIntegrityMismatch)
	}
	return nil
}

// fetchVerified downloads the whole object to a temp file and hands back a
// reader only when the checksum matches, so callers never see corrupt bytes.
func (s *Store) fetchVerified(ctx context.Context, backend Backend, key, checksum string) (io.ReadCloser, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()

	rc, err := backend.Get(stepCtx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	spool, gotChecksum, _, err := spoolToTemp(rc)
	if err != nil {
		return nil, fmt.Errorf("spool %s from %s: %w", key, backend.Name(), err)
	}
	if gotChecksum != checksum {
		spool.Close()
		os.Remove(spool.Name())
		return nil, fmt.Errorf("checksum of %s on %s is %s, want %s: %w",
			key, backend.Name(), gotChecksum, checksum, model.ErrIntegrityMismatch)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		spool.Close()
		os.Remove(spool.Name())
		return nil, fmt.Errorf("rewind verified copy: %w", err)
	}
	return &unlinkOnClose{File: spool}, nil
}

func spoolToTemp(r io.Reader) (*os.File, string, int64, error) {
	f, err := os.CreateTemp("", "backupd-spool-*")
	if err != nil {
		return nil, "", 0, fmt.Errorf("create spool file: %w", err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, "", 0, fmt.Errorf("spool stream: %w", err)
	}
	return f, hex.EncodeToString(h.Sum(nil)), size, nil
}

type unlinkOnClose struct {
	*os.File
}

func (u *unlinkOnClose) Close() error {
	err := u.File.Close()
	os.Remove(u.File.Name())
	return err
}
