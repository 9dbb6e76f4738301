// Package postgres stores participants in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"participants-bot/internal/apperr"
	"participants-bot/internal/models"
	"participants-bot/internal/participants"
)

const schema = `
CREATE TABLE IF NOT EXISTS participants (
	id                  BIGSERIAL PRIMARY KEY,
	full_name_ru        TEXT NOT NULL,
	full_name_en        TEXT NOT NULL DEFAULT '',
	gender              TEXT NOT NULL DEFAULT '',
	size                TEXT NOT NULL DEFAULT '',
	church              TEXT NOT NULL DEFAULT '',
	role                TEXT NOT NULL DEFAULT '',
	department          TEXT NOT NULL DEFAULT '',
	country_and_city    TEXT NOT NULL DEFAULT '',
	submitted_by        TEXT NOT NULL DEFAULT '',
	contact_information TEXT NOT NULL DEFAULT '',
	name_key            TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE participants ADD COLUMN IF NOT EXISTS name_key TEXT NOT NULL DEFAULT '';
DROP INDEX IF EXISTS participants_name_key_idx;
CREATE INDEX IF NOT EXISTS participants_name_key ON participants (name_key);
`

const columns = `id, full_name_ru, full_name_en, gender, size, church, role,
	department, country_and_city, submitted_by, contact_information`

var fieldColumn = map[models.Field]string{
	models.FieldFullNameRU:         "full_name_ru",
	models.FieldFullNameEN:         "full_name_en",
	models.FieldGender:             "gender",
	models.FieldSize:               "size",
	models.FieldChurch:             "church",
	models.FieldRole:               "role",
	models.FieldDepartment:         "department",
	models.FieldCountryAndCity:     "country_and_city",
	models.FieldSubmittedBy:        "submitted_by",
	models.FieldContactInformation: "contact_information",
}

// Store implements participants.Repository on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ participants.Repository = (*Store)(nil)

// Connect opens a pool for dsn and checks connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the table and index when missing and fills
// name_key for rows written before the column existed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return apperr.Storage("ensure schema", err)
	}
	return s.backfillNameKeys(ctx)
}

// name_key is computed in Go so that lookups do not depend on the
// database collation.
func (s *Store) backfillNameKeys(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `SELECT id, full_name_ru FROM participants WHERE name_key = '' AND full_name_ru <> ''`)
	if err != nil {
		return apperr.Storage("select name keys", err)
	}
	type named struct {
		ID   int64
		Name string
	}
	pending, err := pgx.CollectRows(rows, pgx.RowToStructByPos[named])
	if err != nil {
		return apperr.Storage("scan name keys", err)
	}
	if len(pending) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range pending {
		batch.Queue(`UPDATE participants SET name_key = $2 WHERE id = $1`, r.ID, participants.NameKey(r.Name))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return apperr.Storage("backfill name keys", err)
	}
	return nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var (
		id int64
		p  models.Participant
	)
	err := row.Scan(&id, &p.FullNameRU, &p.FullNameEN, &p.Gender, &p.Size, &p.Church,
		&p.Role, &p.Department, &p.CountryAndCity, &p.SubmittedBy, &p.ContactInformation)
	if err != nil {
		return nil, err
	}
	p.ID = strconv.FormatInt(id, 10)
	return &p, nil
}

// parseID rejects ids that cannot exist in a BIGSERIAL column.
func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	return n, err == nil && n > 0
}

func (s *Store) Add(ctx context.Context, p models.Participant) (string, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO participants (full_name_ru, full_name_en, gender, size, church, role,
			department, country_and_city, submitted_by, contact_information, name_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		p.FullNameRU, p.FullNameEN, p.Gender, p.Size, p.Church, p.Role,
		p.Department, p.CountryAndCity, p.SubmittedBy, p.ContactInformation,
		participants.NameKey(p.FullNameRU),
	).Scan(&id)
	if err != nil {
		return "", apperr.Storage("insert participant", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, apperr.NotFound("participant " + id)
	}
	p, err := scanParticipant(s.pool.QueryRow(ctx, `SELECT `+columns+` FROM participants WHERE id = $1`, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("participant " + id)
	}
	if err != nil {
		return nil, apperr.Storage("get participant", err)
	}
	return p, nil
}

func (s *Store) GetByName(ctx context.Context, name string) (*models.Participant, error) {
	p, err := scanParticipant(s.pool.QueryRow(ctx, `
		SELECT `+columns+` FROM participants
		WHERE name_key = $1
		ORDER BY id
		LIMIT 1`, participants.NameKey(name)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("participant " + name)
	}
	if err != nil {
		return nil, apperr.Storage("get participant by name", err)
	}
	return p, nil
}

func (s *Store) GetAll(ctx context.Context) ([]models.Participant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM participants ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage("list participants", err)
	}
	defer rows.Close()

	var out []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, apperr.Storage("scan participant", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list participants", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, p models.Participant) error {
	n, ok := parseID(p.ID)
	if !ok {
		return apperr.NotFound("participant " + p.ID)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE participants SET
			full_name_ru = $2, full_name_en = $3, gender = $4, size = $5, church = $6,
			role = $7, department = $8, country_and_city = $9, submitted_by = $10,
			contact_information = $11, name_key = $12, updated_at = now()
		WHERE id = $1`,
		n, p.FullNameRU, p.FullNameEN, p.Gender, p.Size, p.Church,
		p.Role, p.Department, p.CountryAndCity, p.SubmittedBy, p.ContactInformation,
		participants.NameKey(p.FullNameRU))
	if err != nil {
		return apperr.Storage("update participant", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("participant " + p.ID)
	}
	return nil
}

// updateFieldsSQL builds the statement for a partial update. Columns come
// from a fixed whitelist; values are bound as parameters.
func updateFieldsSQL(fields map[models.Field]string) (string, []any, error) {
	sets := make([]string, 0, len(fields))
	args := []any{nil}
	for _, f := range models.AllFields {
		v, ok := fields[f]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", fieldColumn[f], len(args)))
	}
	if len(sets) != len(fields) {
		return "", nil, fmt.Errorf("unknown field in update")
	}
	if name, ok := fields[models.FieldFullNameRU]; ok {
		args = append(args, participants.NameKey(name))
		sets = append(sets, fmt.Sprintf("name_key = $%d", len(args)))
	}
	sets = append(sets, "updated_at = now()")
	return "UPDATE participants SET " + strings.Join(sets, ", ") + " WHERE id = $1", args, nil
}

func (s *Store) UpdateFields(ctx context.Context, id string, fields map[models.Field]string) error {
	n, ok := parseID(id)
	if !ok {
		return apperr.NotFound("participant " + id)
	}
	if len(fields) == 0 {
		return nil
	}
	query, args, err := updateFieldsSQL(fields)
	if err != nil {
		return err
	}
	args[0] = n
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperr.Storage("update fields", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("participant " + id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return apperr.NotFound("participant " + id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, n)
	if err != nil {
		return apperr.Storage("delete participant", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("participant " + id)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	n, ok := parseID(id)
	if !ok {
		return false, nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM participants WHERE id = $1)`, n).Scan(&exists); err != nil {
		return false, apperr.Storage("participant exists", err)
	}
	return exists, nil
}
