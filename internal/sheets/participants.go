package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
	"participants-bot/internal/participants"
	"participants-bot/internal/util"
)

const SheetParticipants = "Participants"

// Column layout of the Participants sheet. CreatedAt is informational and
// not part of the record.
var (
	header = []interface{}{
		"ID", "FullNameRU", "FullNameEN", "Gender", "Size", "Church", "Role",
		"Department", "CountryAndCity", "SubmittedBy", "ContactInformation", "CreatedAt",
	}
	fieldColumn = func() map[models.Field]int {
		m := make(map[models.Field]int, len(models.AllFields))
		for i, f := range models.AllFields {
			m[f] = i + 1
		}
		return m
	}()
	createdAtColumn = len(models.AllFields) + 1
)

// Rows is the row access the repository needs; *SheetTable implements it.
type Rows interface {
	ReadAll(ctx context.Context) ([][]interface{}, error)
	AppendRow(ctx context.Context, row []interface{}) error
	UpdateRow(ctx context.Context, rowNum int, row []interface{}) error
	UpdateCells(ctx context.Context, cells map[string]interface{}) error
	DeleteRow(ctx context.Context, rowNum int) error
}

// Repository stores participants in a spreadsheet, one row per record.
// Ids are sequential integers; the next id is one above the largest id in
// the sheet. Writes are serialized inside the process.
type Repository struct {
	rows Rows
	mu   sync.Mutex
}

var _ participants.Repository = (*Repository)(nil)

func NewRepository(rows Rows) *Repository {
	return &Repository{rows: rows}
}

// EnsureHeader writes the header row into an empty sheet.
func (r *Repository) EnsureHeader(ctx context.Context) error {
	values, err := r.rows.ReadAll(ctx)
	if err != nil {
		return apperr.Storage("read sheet", err)
	}
	if len(values) > 0 {
		return nil
	}
	return apperr.Storage("write header", r.rows.AppendRow(ctx, header))
}

func rowToParticipant(row []interface{}) models.Participant {
	p := models.Participant{ID: strings.TrimSpace(get(row, 0))}
	for f, col := range fieldColumn {
		p.Set(f, strings.TrimSpace(get(row, col)))
	}
	return p
}

func participantToRow(p models.Participant, createdAt string) []interface{} {
	row := make([]interface{}, createdAtColumn+1)
	row[0] = p.ID
	for f, col := range fieldColumn {
		row[col] = p.Get(f)
	}
	row[createdAtColumn] = createdAt
	return row
}

type located struct {
	p      models.Participant
	rowNum int
	row    []interface{}
}

func (r *Repository) scan(ctx context.Context) ([]located, error) {
	values, err := r.rows.ReadAll(ctx)
	if err != nil {
		return nil, apperr.Storage("read sheet", err)
	}
	var out []located
	// header row at index 0
	for i := 1; i < len(values); i++ {
		row := values[i]
		if len(row) == 0 || strings.TrimSpace(get(row, 0)) == "" {
			continue
		}
		out = append(out, located{p: rowToParticipant(row), rowNum: i + 1, row: row})
	}
	return out, nil
}

func (r *Repository) find(ctx context.Context, id string) (*located, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range all {
		if l.p.ID == id {
			return &l, nil
		}
	}
	return nil, apperr.NotFound("participant " + id)
}

func (r *Repository) Add(ctx context.Context, p models.Participant) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.scan(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	for _, l := range all {
		if n, err := strconv.Atoi(l.p.ID); err == nil && n >= next {
			next = n + 1
		}
	}
	p.ID = strconv.Itoa(next)
	if err := r.rows.AppendRow(ctx, participantToRow(p, util.NowISO())); err != nil {
		return "", apperr.Storage("append participant", err)
	}
	return p.ID, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	l, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &l.p, nil
}

func (r *Repository) GetByName(ctx context.Context, name string) (*models.Participant, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	k := participants.NameKey(name)
	for _, l := range all {
		if participants.NameKey(l.p.FullNameRU) == k {
			p := l.p
			return &p, nil
		}
	}
	return nil, apperr.NotFound("participant " + name)
}

func (r *Repository) GetAll(ctx context.Context) ([]models.Participant, error) {
	all, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Participant, 0, len(all))
	for _, l := range all {
		out = append(out, l.p)
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, p models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.find(ctx, p.ID)
	if err != nil {
		return err
	}
	row := participantToRow(p, get(l.row, createdAtColumn))
	return apperr.Storage("update participant", r.rows.UpdateRow(ctx, l.rowNum, row))
}

func (r *Repository) UpdateFields(ctx context.Context, id string, fields map[models.Field]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	cells := make(map[string]interface{}, len(fields))
	for f, v := range fields {
		col, ok := fieldColumn[f]
		if !ok {
			return fmt.Errorf("unknown field %q", f)
		}
		cells[fmt.Sprintf("%s%d", columnLetter(col), l.rowNum)] = v
	}
	if len(cells) == 0 {
		return nil
	}
	return apperr.Storage("update fields", r.rows.UpdateCells(ctx, cells))
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	return apperr.Storage("delete participant", r.rows.DeleteRow(ctx, l.rowNum))
}

func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.find(ctx, id)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
