// Package csvproj implements the CSV Projection (C15): the bidirectional
// sync between the in-memory Track set and track_list.csv, with legacy
// column migration and a field-merge policy that protects the two
// tracking-only year columns from being clobbered by a plain library
// sync. Grounded on spec.md §4.15 directly; Go CSV handling follows
// stdlib encoding/csv, written in the teacher's atomic-write idiom
// (internal/paths.AtomicWriteFile).
package csvproj

import (
	"encoding/csv"
	"sort"
	"strings"
	"sync"

	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/syncerr"
	"github.com/waves-sync/waves-sync/internal/track"
)

// header is the canonical column order, matching spec.md §6's
// track_list.csv layout. release_year is persisted per DESIGN.md's open
// question decision, even though spec.md §6 doesn't name it explicitly.
var header = []string{
	"id", "name", "artist", "album", "genre", "year", "release_year",
	"date_added", "last_modified", "track_status",
	"year_before_mgu", "year_set_by_mgu",
}

// legacyColumns maps old column names auto-migrated into their current
// equivalent, per spec.md §4.15.
var legacyColumns = map[string]string{
	"old_year": "year_before_mgu",
	"new_year": "year_set_by_mgu",
}

// Row mirrors one track_list.csv line. TrackID satisfies
// internal/verify.Entry so a loaded row slice can be fed straight into
// the Database Verifier.
type Row struct {
	ID             string
	Name           string
	Artist         string
	Album          string
	Genre          string
	Year           string
	ReleaseYear    string
	DateAdded      string
	LastModified   string
	TrackStatus    track.Status
	YearBeforeSync string
	YearSetBySync  string
}

// TrackID implements internal/verify.Entry.
func (r Row) TrackID() string { return r.ID }

// Store owns the CSV file at path.
type Store struct {
	path string
	log  synclog.Logger
}

// New creates a Store.
func New(path string, log synclog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load reads the CSV, tolerating missing columns (warn, keep present
// fields), migrating legacy column names, and skipping rows with an
// empty id.
func (s *Store) Load() ([]Row, error) {
	data, err := paths.ReadIfExists(s.path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, syncerr.New(syncerr.KindCacheCorruption, "read csv projection", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	colIndex := s.resolveColumns(records[0])

	var rows []Row
	for _, rec := range records[1:] {
		row, ok := rowFromRecord(rec, colIndex)
		if !ok {
			continue // empty id
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveColumns maps each canonical column name to its position in the
// on-disk header, applying legacy-name migration and warning about any
// canonical column the file doesn't carry.
func (s *Store) resolveColumns(fileHeader []string) map[string]int {
	byName := make(map[string]int, len(fileHeader))
	for i, name := range fileHeader {
		name = strings.TrimSpace(name)
		if migrated, ok := legacyColumns[name]; ok {
			name = migrated
		}
		byName[name] = i
	}

	for _, want := range header {
		if _, ok := byName[want]; !ok {
			s.log.Warn().Str("column", want).Msg("csv projection missing column, continuing with present fields")
		}
	}
	return byName
}

func rowFromRecord(rec []string, colIndex map[string]int) (Row, bool) {
	get := func(name string) string {
		idx, ok := colIndex[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}

	id := strings.TrimSpace(get("id"))
	if id == "" {
		return Row{}, false
	}

	return Row{
		ID:             id,
		Name:           get("name"),
		Artist:         get("artist"),
		Album:          get("album"),
		Genre:          get("genre"),
		Year:           get("year"),
		ReleaseYear:    get("release_year"),
		DateAdded:      get("date_added"),
		LastModified:   get("last_modified"),
		TrackStatus:    track.Status(get("track_status")),
		YearBeforeSync: get("year_before_mgu"),
		YearSetBySync:  get("year_set_by_mgu"),
	}, true
}

// Save writes rows atomically, in canonical column order.
func (s *Store) Save(rows []Row) error {
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "write csv header", err)
	}
	for _, row := range rows {
		if err := w.Write(rowToRecord(row)); err != nil {
			return syncerr.New(syncerr.KindCacheCorruption, "write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "flush csv projection", err)
	}

	return paths.AtomicWriteFile(s.path, []byte(buf.String()), 0o644)
}

func rowToRecord(r Row) []string {
	return []string{
		r.ID, r.Name, r.Artist, r.Album, r.Genre, r.Year, r.ReleaseYear,
		r.DateAdded, r.LastModified, string(r.TrackStatus),
		r.YearBeforeSync, r.YearSetBySync,
	}
}

// Merge implements spec.md §4.15's merge policy: {name, artist, album,
// genre, year, date_added, track_status} are replaced from the live
// track; year_before_mgu and year_set_by_mgu are preserved from the CSV
// row (they are owned by C11/C12, not the library) unless the live
// track itself carries a newer value (the year pipeline writes through
// track.Track directly, so a non-empty tracking field there always
// wins). If year_before_mgu is empty going in, it is seeded from the
// live year to pre-empt a redundant later fetch.
func Merge(existing Row, live track.Track) Row {
	merged := Row{
		ID:           live.ID,
		Name:         live.Name,
		Artist:       live.Artist,
		Album:        live.Album,
		Genre:        live.Genre,
		Year:         live.Year,
		ReleaseYear:  live.ReleaseYear,
		DateAdded:    live.DateAdded,
		LastModified: live.LastModified,
		TrackStatus:  live.TrackStatus,

		YearBeforeSync: existing.YearBeforeSync,
		YearSetBySync:  existing.YearSetBySync,
	}
	if live.YearBeforeSync != "" {
		merged.YearBeforeSync = live.YearBeforeSync
	}
	if live.YearSetBySync != "" {
		merged.YearSetBySync = live.YearSetBySync
	}
	if merged.YearBeforeSync == "" {
		merged.YearBeforeSync = live.Year
	}
	return merged
}

// NewRow builds a Row for a track seen for the first time, seeding
// year_before_mgu from the live year.
func NewRow(live track.Track) Row {
	return Merge(Row{}, live)
}

// Sync applies the full C15 read-merge-write cycle: tracks absent from
// live are dropped, tracks present are merged against any existing CSV
// row (or created fresh). Rows are written in the order of live; the
// previous on-disk row order is not kept.
func (s *Store) Sync(live []track.Track) ([]Row, error) {
	existing, err := s.Load()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Row, len(existing))
	for _, row := range existing {
		byID[row.ID] = row
	}

	rows := make([]Row, 0, len(live))
	for _, t := range live {
		rows = append(rows, Merge(byID[t.ID], t))
	}

	if err := s.Save(rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RowSet is an in-memory, mutex-protected working copy of a loaded row
// set. internal/verify's batched sweep removes ids from many goroutines
// concurrently; collecting the removals here and saving once after the
// sweep completes avoids a Load/Save race per id. RowSet implements
// internal/verify.Remover.
type RowSet struct {
	mu   sync.Mutex
	rows map[string]Row
}

// NewRowSet snapshots rows into a RowSet.
func NewRowSet(rows []Row) *RowSet {
	m := make(map[string]Row, len(rows))
	for _, r := range rows {
		m[r.ID] = r
	}
	return &RowSet{rows: m}
}

// RemoveByID implements internal/verify.Remover.
func (s *RowSet) RemoveByID(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return false
	}
	delete(s.rows, id)
	return true
}

// Rows returns the surviving rows, sorted by id for a deterministic
// on-disk diff between sweeps.
func (s *RowSet) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

