// Package registry looks up correspondents in the employee registry
// spreadsheet by registration id.
package registry

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/logging"
)

// IDLength is the width registration ids are padded to.
const IDLength = 6

// Record is one registry row keyed by column header.
type Record map[string]string

// Source resolves a registration id to a record.
type Source interface {
	Find(ctx context.Context, registrationID string) (Record, bool, error)
}

// Loader reads the whole registry table, keyed by normalized id.
type Loader interface {
	Load(ctx context.Context) (map[string]Record, error)
}

// NormalizeID trims the id and restores leading zeros that spreadsheets drop
// from numeric cells.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) >= IDLength {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return strings.Repeat("0", IDLength-len(id)) + id
}

// None is used when no registry is configured: every well-formed id is
// accepted with an empty profile.
type None struct{}

func (None) Find(context.Context, string) (Record, bool, error) { return Record{}, true, nil }

// tableFrom keys data rows by the idColumn header.
func tableFrom(rows [][]string, idColumn string) (map[string]Record, error) {
	if len(rows) == 0 {
		return map[string]Record{}, nil
	}
	header := rows[0]
	idx := -1
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
		if strings.EqualFold(header[i], idColumn) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("registry: column %q not found", idColumn)
	}

	table := make(map[string]Record, len(rows)-1)
	for _, row := range rows[1:] {
		if idx >= len(row) {
			continue
		}
		id := NormalizeID(row[idx])
		if id == "" {
			continue
		}
		rec := make(Record, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(row) {
				rec[h] = strings.TrimSpace(row[i])
			} else {
				rec[h] = ""
			}
		}
		rec[header[idx]] = id
		table[id] = rec
	}
	return table, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the configured source. With cfg.Watch the table is reloaded when
// the file changes; the returned closer stops the watcher.
func New(ctx context.Context, cfg config.RegistryConfig, log *logging.Logger) (Source, io.Closer, error) {
	var loader Loader
	switch cfg.Source {
	case "", "none":
		return None{}, nopCloser{}, nil
	case "csv":
		loader = &CSVSource{Path: cfg.Path, IDColumn: cfg.IDColumn}
	case "xlsx":
		loader = &XLSXSource{Path: cfg.Path, Sheet: cfg.Sheet, IDColumn: cfg.IDColumn}
	default:
		return nil, nil, fmt.Errorf("unknown registry source %q", cfg.Source)
	}

	cached := NewCached(loader, log)
	if !cfg.Watch {
		return cached, nopCloser{}, nil
	}

	w, err := NewWatcher(cfg.Path, cached.Invalidate, log)
	if err != nil {
		return nil, nil, err
	}
	go w.Run(ctx)
	return cached, w, nil
}
