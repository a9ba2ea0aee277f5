package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/model"
)

// Tool drives the external dump and restore binaries. Both are opaque:
// given a scope they emit or consume a consistent snapshot byte stream, and
// their failures reach us only as exit codes and stderr text.
type Tool struct {
	logger     zerolog.Logger
	dumpBin    string
	restoreBin string
}

func NewTool(logger zerolog.Logger, dumpBin, restoreBin string) *Tool {
	return &Tool{
		logger:     logger.With().Str("component", "dump-tool").Logger(),
		dumpBin:    dumpBin,
		restoreBin: restoreBin,
	}
}

// Dump starts the dump tool for the scope and returns its output stream.
// The caller must Close the stream; Close reaps the process and reports its
// exit error, so a tool that died mid-stream is never mistaken for success.
func (t *Tool) Dump(ctx context.Context, scope Scope) (io.ReadCloser, error) {
	args := scope.Args()
	cmd := exec.CommandContext(ctx, t.dumpBin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: open stdout pipe: %s", model.ErrDumpFailure, err)
	}

	t.logger.Debug().Strs("args", args).Msg("starting dump tool")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %s", model.ErrDumpFailure, t.dumpBin, err)
	}

	return &dumpStream{ReadCloser: stdout, cmd: cmd, stderr: &stderr}, nil
}

// Apply feeds the snapshot stream to the restore tool for the scope. The
// tool applies into a scratch area and swaps atomically on success, so a
// failed restore leaves pre-existing data untouched.
func (t *Tool) Apply(ctx context.Context, scope Scope, r io.Reader) error {
	args := append(scope.Args(), "--staged")
	cmd := exec.CommandContext(ctx, t.restoreBin, args...)
	cmd.Stdin = r

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.logger.Debug().Strs("args", args).Msg("starting restore tool")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("restore tool failed: %s: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

type dumpStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
}

// Close drains the pipe and waits for the tool. A non-zero exit becomes a
// DumpFailure carrying the captured stderr.
func (d *dumpStream) Close() error {
	io.Copy(io.Discard, d.ReadCloser)
	d.ReadCloser.Close()
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %s: %s", model.ErrDumpFailure, err, strings.TrimSpace(d.stderr.String()))
	}
	return nil
}
