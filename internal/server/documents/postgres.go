package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, d *Document) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("%w: encode fields: %w", common.ErrorValidation, err)
	}

	query := `INSERT INTO documents (id, collection, user_id, fields)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query, d.ID, d.Collection, d.UserID, fields).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, d *Document) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("%w: encode fields: %w", common.ErrorValidation, err)
	}

	query := `UPDATE documents SET fields = $4, updated_at = now()
		WHERE collection = $1 AND id = $2 AND user_id = $3`

	res, err := r.db.ExecContext(ctx, query, d.Collection, d.ID, d.UserID, fields)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

const selectColumns = `id, collection, user_id, fields, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		d   Document
		raw []byte
	)
	if err := row.Scan(&d.ID, &d.Collection, &d.UserID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &d.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", d.ID, err)
	}
	return &d, nil
}

func (r *PostgresRepository) Get(ctx context.Context, collection, id string) (*Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents WHERE collection = $1 AND id = $2`

	d, err := scanDocument(r.db.QueryRowContext(ctx, query, collection, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, collection, userID string) ([]Document, error) {
	query := `SELECT ` + selectColumns + ` FROM documents
		WHERE collection = $1 AND user_id = $2
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, collection, userID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	return docs, nil
}
