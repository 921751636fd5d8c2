package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

// lastRunLayouts are tried in order against last_incremental_run.log,
// per spec.md §6's tolerance for legacy timestamp formats. time.Parse
// leaves an unspecified zone as UTC, which covers the "naive datetimes
// assumed UTC" requirement for the two date-only/space-separated forms.
var lastRunLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// readLastIncrementalRun parses the single-line timestamp file. A
// missing file returns the zero time with no error, matching every
// other persisted-state loader's "nothing yet" convention.
func readLastIncrementalRun(path string) (time.Time, error) {
	data, err := paths.ReadIfExists(path)
	if err != nil {
		return time.Time{}, err
	}
	if data == nil {
		return time.Time{}, nil
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return time.Time{}, nil
	}

	for _, layout := range lastRunLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, syncerr.New(syncerr.KindCacheCorruption, "parse last_incremental_run.log", fmt.Errorf("unrecognised timestamp %q", raw))
}

// writeLastIncrementalRun persists t in the canonical ISO-8601 UTC form,
// atomically.
func writeLastIncrementalRun(path string, t time.Time) error {
	return paths.AtomicWriteFile(path, []byte(t.UTC().Format(time.RFC3339)+"\n"), 0o644)
}
