package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bordercore/drill/store"
)

func (d *DB) CreateQuestionResponse(ctx context.Context, create *store.QuestionResponse) (*store.QuestionResponse, error) {
	if err := execCreateQuestionResponse(ctx, d.db, create); err != nil {
		return nil, err
	}
	return create, nil
}

type queryRowExecer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execCreateQuestionResponse(ctx context.Context, db queryRowExecer, create *store.QuestionResponse) error {
	fields := []string{"question_id", "response"}
	placeholderValues := []any{create.QuestionID, create.Response}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO question_response (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts`

	if err := db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return fmt.Errorf("failed to create question response: %w", err)
	}
	return nil
}

func (d *DB) ListQuestionResponses(ctx context.Context, find *store.FindQuestionResponse) ([]*store.QuestionResponse, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.QuestionID; v != nil {
		where, args = append(where, "question_id = ?"), append(args, *v)
	}

	query := `
		SELECT id, question_id, response, created_ts
		FROM question_response
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query question responses: %w", err)
	}
	defer rows.Close()

	list := make([]*store.QuestionResponse, 0)
	for rows.Next() {
		var response store.QuestionResponse
		if err := rows.Scan(
			&response.ID,
			&response.QuestionID,
			&response.Response,
			&response.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question response: %w", err)
		}
		list = append(list, &response)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question responses: %w", err)
	}
	return list, nil
}
