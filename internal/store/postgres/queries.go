package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/hazel/internal/idgen"
	"github.com/alfredjeanlab/hazel/internal/model"
	"github.com/alfredjeanlab/hazel/internal/store"
)

// recordColumns is the column list used for SELECT statements on the records table.
const recordColumns = `id, channel_id, title, color, created_at, fields`

// uniqueViolation is the Postgres error code for a duplicate key.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateRecord(ctx context.Context, db executor, r *model.Record) error {
	if r.ID == "" {
		id, err := idgen.New(idgen.Record)
		if err != nil {
			return err
		}
		r.ID = id
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	fields, err := encodeFields(r.Fields)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO records (id, channel_id, title, color, created_at, fields)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.ChannelID, r.Title, r.Color, r.CreatedAt, fields,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("create record %s: %w", r.ID, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

func queryGetRecord(ctx context.Context, db executor, id string) (*model.Record, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return r, nil
}

func queryReplaceFields(ctx context.Context, db executor, id string, fields []model.Field) error {
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE records SET fields = $2 WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("replace fields %s: %w", id, err)
	}
	return requireRow(res)
}

func queryDeleteRecord(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return requireRow(res)
}

func queryListPage(ctx context.Context, db executor, q store.PageQuery) ([]*model.Record, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	whereClauses = append(whereClauses, "channel_id = "+nextArg())
	args = append(args, q.ChannelID)

	if !q.Since.IsZero() {
		whereClauses = append(whereClauses, "created_at > "+nextArg())
		args = append(args, q.Since)
	}

	if q.Before != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(created_at, id) < (SELECT created_at, id FROM records WHERE id = %s)", p))
		args = append(args, q.Before)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = store.DefaultPageSize
	}
	limitArg := nextArg()
	args = append(args, limit)

	query := `SELECT ` + recordColumns + ` FROM records WHERE ` +
		strings.Join(whereClauses, " AND ") +
		` ORDER BY created_at DESC, id DESC LIMIT ` + limitArg

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeFields(fields []model.Field) (string, error) {
	if fields == nil {
		fields = []model.Field{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}
