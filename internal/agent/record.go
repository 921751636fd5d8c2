package agent

import (
	"strconv"
	"strings"
)

// Record is a single parsed library-scan row, normalized to the 12-field
// shape regardless of which of the two dialects produced it.
type Record struct {
	ID               string
	Name             string
	Artist           string
	AlbumArtist      string // empty under the 11-field dialect
	Album            string
	Genre            string
	DateAdded        string
	ModificationDate string
	TrackStatus      string
	Year             string
	ReleaseYear      string
}

// ParseRecords splits a raw agent response into Records per spec.md §6's
// tabular dialect: records are separated by 0x1D, fields within a record
// by 0x1E. Records with fewer than 11 fields are skipped.
//
// When the response contains exactly one record, splitting must still
// happen on the field separator only — never on a line terminator —
// since a single-track response has no record separator at all and would
// otherwise shatter into one row per field.
func ParseRecords(raw string) ([]Record, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var chunks []string
	if strings.Contains(raw, recordSeparator) {
		chunks = strings.Split(raw, recordSeparator)
	} else {
		chunks = []string{raw}
	}

	records := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimRight(chunk, "\r\n")
		if chunk == "" {
			continue
		}
		fields := strings.Split(chunk, fieldSeparator)
		if len(fields) < minFields {
			continue // skipped with warning at the caller's logging layer
		}
		for i := range fields {
			fields[i] = normalizeField(fields[i])
		}
		records = append(records, recordFromFields(fields))
	}
	return records, nil
}

// recordFromFields maps either the 12-field (with album_artist) or the
// 11-field (without) dialect onto Record.
func recordFromFields(f []string) Record {
	if len(f) >= 12 {
		return Record{
			ID:               f[0],
			Name:             f[1],
			Artist:           f[2],
			AlbumArtist:      f[3],
			Album:            f[4],
			Genre:            f[5],
			DateAdded:        f[6],
			ModificationDate: f[7],
			TrackStatus:      f[8],
			Year:             f[9],
			ReleaseYear:      f[10],
		}
	}
	// 11-field dialect: no album_artist, every subsequent position shifts
	// down by one.
	return Record{
		ID:               f[0],
		Name:             f[1],
		Artist:           f[2],
		Album:            f[3],
		Genre:            f[4],
		DateAdded:        f[5],
		ModificationDate: f[6],
		TrackStatus:      f[7],
		Year:             f[8],
		ReleaseYear:      f[9],
	}
}

func normalizeField(s string) string {
	s = strings.TrimSpace(s)
	if s == missingValue {
		return ""
	}
	return s
}

// ParseYear parses a record's year field into an int, returning 0 for an
// empty or non-numeric value.
func ParseYear(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
