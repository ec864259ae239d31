package registry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
)

// CSVSource reads the registry from a CSV export with a header row.
type CSVSource struct {
	Path     string
	IDColumn string
}

func (s *CSVSource) Load(_ context.Context) (map[string]Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening registry: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", s.Path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = trimBOM(rows[0][0])
	}
	return tableFrom(rows, s.IDColumn)
}

// Find loads the file and looks up one id.
func (s *CSVSource) Find(ctx context.Context, registrationID string) (Record, bool, error) {
	return findIn(ctx, s, registrationID)
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}

func findIn(ctx context.Context, l Loader, registrationID string) (Record, bool, error) {
	table, err := l.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	rec, ok := table[NormalizeID(registrationID)]
	return rec, ok, nil
}
