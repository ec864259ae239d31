package registry

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads the registry from a workbook. An empty Sheet selects the
// first sheet.
type XLSXSource struct {
	Path     string
	Sheet    string
	IDColumn string
}

func (s *XLSXSource) Load(_ context.Context) (map[string]Record, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening registry workbook: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return tableFrom(rows, s.IDColumn)
}

// Find loads the workbook and looks up one id.
func (s *XLSXSource) Find(ctx context.Context, registrationID string) (Record, bool, error) {
	return findIn(ctx, s, registrationID)
}
