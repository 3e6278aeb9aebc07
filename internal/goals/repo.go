package goals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrGoalNotFound = errors.New("goal not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, goal *Goal) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if goal.UserID == "" || goal.Metric == "" {
		return nil, errors.New("goal user id or metric empty")
	}

	var (
		id        int
		createdAt time.Time
	)
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO goal (user_id, metric, label, target_value, direction, target_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at;`,
		goal.UserID, goal.Metric, goal.Label, goal.TargetValue, goal.Direction, goal.TargetDate,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	goal.ID = id
	goal.CreatedAt = createdAt
	return goal, nil
}

func (r *Repo) ListForUser(ctx context.Context, userID string) (_ []Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.listForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, user_id, metric, label, target_value, direction, target_date, created_at
			FROM goal
			WHERE user_id = $1
			ORDER BY created_at ASC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var goal Goal
		if err := rows.Scan(
			&goal.ID, &goal.UserID, &goal.Metric, &goal.Label,
			&goal.TargetValue, &goal.Direction, &goal.TargetDate, &goal.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return goals, nil
}

// Delete removes the goal only if it belongs to the given user.
func (r *Repo) Delete(ctx context.Context, userID string, goalID int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM goal WHERE id = $1 AND user_id = $2;`,
		goalID, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

func (r *Repo) DeleteAllForUser(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.goals.deleteAllForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`DELETE FROM goal WHERE user_id = $1;`,
		userID,
	)
	return err
}
