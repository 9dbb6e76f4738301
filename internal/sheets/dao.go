package sheets

import (
	"context"
	"fmt"
	"sync"

	sheetsv4 "google.golang.org/api/sheets/v4"
)

// SheetTable reads and writes whole rows of one sheet. Row numbers are
// 1-based as in A1 notation; row 1 is the header.
type SheetTable struct {
	c     *Client
	sheet string

	mu      sync.Mutex
	sheetID *int64
}

func (t *SheetTable) rng(a1 string) string {
	return t.sheet + "!" + a1
}

func (t *SheetTable) ReadAll(ctx context.Context) ([][]interface{}, error) {
	resp, err := t.c.srv.Spreadsheets.Values.Get(t.c.spreadsheetID, t.rng("A:Z")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (t *SheetTable) AppendRow(ctx context.Context, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	_, err := t.c.srv.Spreadsheets.Values.Append(t.c.spreadsheetID, t.rng("A:Z"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (t *SheetTable) UpdateRow(ctx context.Context, rowNum int, row []interface{}) error {
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{row}}
	a1 := fmt.Sprintf("A%d:%s%d", rowNum, columnLetter(len(row)-1), rowNum)
	_, err := t.c.srv.Spreadsheets.Values.Update(t.c.spreadsheetID, t.rng(a1), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// UpdateCells writes single cells keyed by A1 address in one request.
func (t *SheetTable) UpdateCells(ctx context.Context, cells map[string]interface{}) error {
	req := &sheetsv4.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for a1, v := range cells {
		req.Data = append(req.Data, &sheetsv4.ValueRange{
			Range:  t.rng(a1),
			Values: [][]interface{}{{v}},
		})
	}
	_, err := t.c.srv.Spreadsheets.Values.BatchUpdate(t.c.spreadsheetID, req).Context(ctx).Do()
	return err
}

// DeleteRow removes rowNum and shifts the rows below it up.
func (t *SheetTable) DeleteRow(ctx context.Context, rowNum int) error {
	sid, err := t.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsv4.Request{{
			DeleteDimension: &sheetsv4.DeleteDimensionRequest{
				Range: &sheetsv4.DimensionRange{
					SheetId:    sid,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		}},
	}
	_, err = t.c.srv.Spreadsheets.BatchUpdate(t.c.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (t *SheetTable) lookupSheetID(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sheetID != nil {
		return *t.sheetID, nil
	}
	ss, err := t.c.srv.Spreadsheets.Get(t.c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == t.sheet {
			id := s.Properties.SheetId
			t.sheetID = &id
			return id, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", t.sheet)
}

// columnLetter converts a 0-based column index to its A1 letters.
func columnLetter(idx int) string {
	s := ""
	for idx >= 0 {
		s = string(rune('A'+idx%26)) + s
		idx = idx/26 - 1
	}
	return s
}

func get(row []interface{}, idx int) string {
	if idx < len(row) {
		return fmt.Sprint(row[idx])
	}
	return ""
}
