// Package report records finished intakes in an append-only CSV log and
// delivers that log to operators.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
)

// Header is the first row of every completion log.
var Header = []string{"Chat ID", "Nome", "Matrícula", "Opção", "Detalhes", "Avaliação", "Data", "Código", "Status"}

// AttachmentName is the file name used when the log is mailed or uploaded.
const AttachmentName = "atendimentos.csv"

// Log is the append-only completion log.
type Log struct {
	mu   sync.Mutex
	path string
	log  *logging.Logger
}

// OpenLog prepares a log at path, creating its directory.
func OpenLog(path string, log *logging.Logger) (*Log, error) {
	if path == "" {
		return nil, errors.New("report: log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &Log{path: path, log: log.Sub("report")}, nil
}

// Path returns the CSV file location.
func (l *Log) Path() string { return l.path }

// Append writes one record, adding the header when the file is new or
// empty. The write is fsynced before Append returns.
func (l *Log) Append(rec domain.CompletionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening report log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat report log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("writing report header: %w", err)
		}
	}
	if err := w.Write(row(rec)); err != nil {
		return fmt.Errorf("writing report row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing report log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing report log: %w", err)
	}

	l.log.Debug().Str("ticketCode", rec.TicketCode).Str("path", l.path).Msg("completion appended")
	return nil
}

// Records reads every record in file order. A missing file has none.
func (l *Log) Records() ([]domain.CompletionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening report log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var out []domain.CompletionRecord
	for line := 1; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, fmt.Errorf("reading report log: %w", err)
		}
		if line == 1 && len(fields) > 0 && fields[0] == Header[0] {
			continue
		}
		rec, ok := parseRow(fields)
		if !ok {
			l.log.Warn().Int("line", line).Msg("skipping malformed report row")
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Snapshot is a consistent copy of the log file taken under the append lock.
type Snapshot struct {
	Name  string // attachment / object file name
	Data  []byte
	Taken time.Time
}

// Empty reports whether the log held no rows when the snapshot was taken.
func (s Snapshot) Empty() bool { return len(s.Data) == 0 }

// Snapshot reads the whole file while no Append can interleave, so the copy
// always ends on a row boundary. A missing file yields an empty snapshot.
func (l *Log) Snapshot() (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{Name: AttachmentName, Taken: time.Now()}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("reading report log: %w", err)
	}
	snap.Data = data
	return snap, nil
}

// Find returns the most recent record with the given ticket code.
func (l *Log) Find(code string) (*domain.CompletionRecord, bool, error) {
	recs, err := l.Records()
	if err != nil {
		return nil, false, err
	}
	for i := len(recs) - 1; i >= 0; i-- {
		if strings.EqualFold(recs[i].TicketCode, code) {
			rec := recs[i]
			return &rec, true, nil
		}
	}
	return nil, false, nil
}

func row(rec domain.CompletionRecord) []string {
	rating := ""
	if rec.Rating != nil {
		rating = strconv.Itoa(*rec.Rating)
	}
	return []string{
		rec.CorrespondentID,
		rec.Name,
		rec.RegistrationID,
		rec.Option,
		rec.Details,
		rating,
		rec.Timestamp.Format(time.RFC3339),
		rec.TicketCode,
		string(rec.Status),
	}
}

func parseRow(fields []string) (domain.CompletionRecord, bool) {
	if len(fields) != len(Header) {
		return domain.CompletionRecord{}, false
	}
	rec := domain.CompletionRecord{
		CorrespondentID: fields[0],
		Name:            fields[1],
		RegistrationID:  fields[2],
		Option:          fields[3],
		Details:         fields[4],
		TicketCode:      fields[7],
		Status:          domain.CompletionStatus(fields[8]),
	}
	if fields[5] != "" {
		n, err := strconv.Atoi(fields[5])
		if err != nil {
			return domain.CompletionRecord{}, false
		}
		rec.Rating = &n
	}
	if ts, err := time.Parse(time.RFC3339, fields[6]); err == nil {
		rec.Timestamp = ts
	}
	return rec, true
}
