package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bordercore/drill/store"
)

func (d *DB) CreateQuestion(ctx context.Context, create *store.Question) (*store.Question, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fields := []string{
		"uid", "creator_id", "question", "answer",
		"interval_days", "interval_index", "last_reviewed_ts", "times_failed",
		"is_favorite", "is_disabled", "is_reversible",
	}
	placeholderValues := []any{
		create.UID, create.CreatorID, create.Question, create.Answer,
		create.IntervalDays, create.IntervalIndex, create.LastReviewedTs, create.TimesFailed,
		create.IsFavorite, create.IsDisabled, create.IsReversible,
	}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO question (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts, updated_ts, row_version`

	if err := tx.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
		&create.UpdatedTs,
		&create.RowVersion,
	); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	for _, tag := range create.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_tag (question_id, tag) VALUES ($1, $2)`,
			create.ID, tag,
		); err != nil {
			return nil, fmt.Errorf("failed to tag question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return create, nil
}

func (d *DB) ListQuestions(ctx context.Context, find *store.FindQuestion) ([]*store.Question, error) {
	where, args := []string{"TRUE"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "question.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "question.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "question.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.ExcludeDisabled {
		where = append(where, "question.is_disabled = FALSE")
	}
	if v := find.IsFavorite; v != nil {
		where, args = append(where, "question.is_favorite = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "question.created_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	for _, tag := range find.TagAll {
		where = append(where, "EXISTS (SELECT 1 FROM question_tag qt WHERE qt.question_id = question.id AND qt.tag = "+placeholder(len(args)+1)+")")
		args = append(args, tag)
	}
	if len(find.ExcludeTags) > 0 {
		where = append(where, "NOT EXISTS (SELECT 1 FROM question_tag qt WHERE qt.question_id = question.id AND qt.tag IN ("+placeholdersFrom(len(args)+1, len(find.ExcludeTags))+"))")
		for _, tag := range find.ExcludeTags {
			args = append(args, tag)
		}
	}
	if v := find.Keyword; v != nil {
		p1 := placeholder(len(args) + 1)
		p2 := placeholder(len(args) + 2)
		where = append(where, `(question.question ILIKE `+p1+` ESCAPE '\' OR question.answer ILIKE `+p2+` ESCAPE '\')`)
		pattern := "%" + escapeLikePattern(*v) + "%"
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT
			question.id, question.uid, question.creator_id, question.created_ts, question.updated_ts,
			question.question, question.answer,
			question.interval_days, question.interval_index, question.last_reviewed_ts,
			question.times_failed, question.is_favorite, question.is_disabled, question.is_reversible,
			question.row_version,
			COALESCE((SELECT STRING_AGG(qt.tag, ',') FROM question_tag qt WHERE qt.question_id = question.id), '') AS tags
		FROM question
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY question.created_ts DESC, question.id DESC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Question, 0)
	for rows.Next() {
		var question store.Question
		var lastReviewedTs sql.NullInt64
		var tags string

		if err := rows.Scan(
			&question.ID,
			&question.UID,
			&question.CreatorID,
			&question.CreatedTs,
			&question.UpdatedTs,
			&question.Question,
			&question.Answer,
			&question.IntervalDays,
			&question.IntervalIndex,
			&lastReviewedTs,
			&question.TimesFailed,
			&question.IsFavorite,
			&question.IsDisabled,
			&question.IsReversible,
			&question.RowVersion,
			&tags,
		); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}

		if lastReviewedTs.Valid {
			ts := lastReviewedTs.Int64
			question.LastReviewedTs = &ts
		}
		if tags != "" {
			question.Tags = strings.Split(tags, ",")
		}
		list = append(list, &question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return list, nil
}

func (d *DB) UpdateQuestion(ctx context.Context, update *store.UpdateQuestion) error {
	return execQuestionUpdate(ctx, d.db, update)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execQuestionUpdate(ctx context.Context, db execer, update *store.UpdateQuestion) error {
	set, args := []string{"updated_ts = EXTRACT(EPOCH FROM NOW())", "row_version = row_version + 1"}, []any{}

	if v := update.IntervalDays; v != nil {
		args = append(args, *v)
		set = append(set, "interval_days = "+placeholder(len(args)))
	}
	if v := update.IntervalIndex; v != nil {
		args = append(args, *v)
		set = append(set, "interval_index = "+placeholder(len(args)))
	}
	if v := update.LastReviewedTs; v != nil {
		args = append(args, *v)
		set = append(set, "last_reviewed_ts = "+placeholder(len(args)))
	}
	if v := update.TimesFailed; v != nil {
		args = append(args, *v)
		set = append(set, "times_failed = "+placeholder(len(args)))
	}
	if v := update.IsFavorite; v != nil {
		args = append(args, *v)
		set = append(set, "is_favorite = "+placeholder(len(args)))
	}
	if v := update.IsDisabled; v != nil {
		args = append(args, *v)
		set = append(set, "is_disabled = "+placeholder(len(args)))
	}

	args = append(args, update.ID)
	where := []string{"id = " + placeholder(len(args))}
	if v := update.ExpectedRowVersion; v != nil {
		args = append(args, *v)
		where = append(where, "row_version = "+placeholder(len(args)))
	}

	stmt := `UPDATE question SET ` + strings.Join(set, ", ") + ` WHERE ` + strings.Join(where, " AND ")
	result, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 && update.ExpectedRowVersion != nil {
		return store.ErrStaleWrite
	}
	return nil
}

func (d *DB) RecordQuestionReview(ctx context.Context, update *store.UpdateQuestion, log *store.QuestionResponse) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execQuestionUpdate(ctx, tx, update); err != nil {
		return err
	}
	if err := execCreateQuestionResponse(ctx, tx, log); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) BulkUpdateQuestionIntervals(ctx context.Context, updates []*store.UpdateQuestionInterval) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE question SET interval_days = $1, updated_ts = EXTRACT(EPOCH FROM NOW()), row_version = row_version + 1 WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("failed to prepare interval update: %w", err)
	}
	defer stmt.Close()

	for _, update := range updates {
		if _, err := stmt.ExecContext(ctx, update.IntervalDays, update.ID); err != nil {
			return fmt.Errorf("failed to update interval for question %d: %w", update.ID, err)
		}
	}
	return tx.Commit()
}

func (d *DB) DeleteQuestion(ctx context.Context, delete *store.DeleteQuestion) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM question WHERE id = $1`, delete.ID); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}
