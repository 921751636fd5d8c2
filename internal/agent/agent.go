// Package agent talks to the out-of-process library agent: a subprocess
// that accepts named scripts with positional string arguments and prints
// a single structured response line. The core never parses the agent's
// own scripting language; it only speaks the tabular surface documented
// in spec.md §6. Grounded on the teacher's internal/slskd.Client shape
// (a small typed wrapper around an external collaborator, timeouts and
// all) adapted from HTTP to os/exec.
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/waves-sync/waves-sync/internal/ratelimit"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

const (
	recordSeparator = "\x1D"
	fieldSeparator  = "\x1E"
	missingValue    = "missing value"

	minFields = 11
)

// Runner abstracts subprocess execution so tests can substitute a fake
// without shelling out.
type Runner interface {
	Run(ctx context.Context, script string, args []string) (string, error)
}

// ExecRunner runs scripts via the named interpreter binary, passing the
// script name followed by its positional arguments.
type ExecRunner struct {
	Interpreter string
	Timeout     time.Duration
}

// Run invokes the configured interpreter binary.
func (r ExecRunner) Run(ctx context.Context, script string, args []string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Interpreter, append([]string{script}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("run agent script %s: %w", script, err)
	}
	return string(out), nil
}

// Client is the rate-limited submitter of agent scripts described in
// spec.md §4.7.
type Client struct {
	runner  Runner
	limiter *ratelimit.Limiter
}

// New creates a Client. limiter must already be Initialize'd.
func New(runner Runner, limiter *ratelimit.Limiter) *Client {
	return &Client{runner: runner, limiter: limiter}
}

// call wraps a script submission with the rate limiter and uniform error
// classification: any subprocess failure becomes a syncerr.KindAgentError,
// and a failed rate-limiter Acquire becomes a syncerr.KindAgentUnavailable.
func (c *Client) call(ctx context.Context, script string, args []string) (string, error) {
	if _, err := c.limiter.Acquire(ctx); err != nil {
		return "", syncerr.New(syncerr.KindAgentUnavailable, script, err)
	}
	defer c.limiter.Release()

	out, err := c.runner.Run(ctx, script, args)
	if err != nil {
		return "", syncerr.New(syncerr.KindAgentError, script, err)
	}
	return out, nil
}

// ScanOptions parameterizes the paged library scan.
type ScanOptions struct {
	ArtistFilter string
	Offset       int
	Limit        int
	MinDateAdded *int64 // Unix timestamp, nil when unset
}

// Scan performs one page of the library scan and returns parsed records.
func (c *Client) Scan(ctx context.Context, opts ScanOptions) ([]Record, error) {
	minDateAdded := ""
	if opts.MinDateAdded != nil {
		minDateAdded = strconv.FormatInt(*opts.MinDateAdded, 10)
	}
	out, err := c.call(ctx, "scan_library", []string{
		opts.ArtistFilter,
		strconv.Itoa(opts.Offset),
		strconv.Itoa(opts.Limit),
		minDateAdded,
	})
	if err != nil {
		return nil, err
	}
	return ParseRecords(out)
}

// FetchByIDs resolves a set of track ids to full records in one call.
func (c *Client) FetchByIDs(ctx context.Context, ids []string) ([]Record, error) {
	out, err := c.call(ctx, "fetch_tracks_by_ids", []string{strings.Join(ids, ",")})
	if err != nil {
		return nil, err
	}
	return ParseRecords(out)
}

// Exists probes whether a track id is still present in the library.
// Per spec.md §7, an AgentError on this call is treated as "result
// unknown" and defaults to present, so the caller of Exists should treat
// a returned error as non-fatal and assume presence.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	out, err := c.call(ctx, "track_exists", []string{id})
	if err != nil {
		return true, err
	}
	return strings.TrimSpace(out) == "true", nil
}

// UpdateProperty writes a single field on a single track.
func (c *Client) UpdateProperty(ctx context.Context, id, field, value string) error {
	_, err := c.call(ctx, "update_track_property", []string{id, field, value})
	return err
}

// BulkUpdateYear writes years for multiple tracks in one script
// invocation. ids and years must be the same length and are paired
// positionally.
func (c *Client) BulkUpdateYear(ctx context.Context, ids, years []string) error {
	if len(ids) != len(years) {
		return syncerr.New(syncerr.KindValidation, "bulk_update_years", fmt.Errorf("ids and years length mismatch: %d vs %d", len(ids), len(years)))
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := c.call(ctx, "bulk_update_years", []string{strings.Join(ids, ","), strings.Join(years, ",")})
	return err
}
