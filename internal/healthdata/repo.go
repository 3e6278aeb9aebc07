package healthdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo persists merged day and workout records as JSONB rows stamped
// with synced_at. Rows are superseded on every resync via upserts on
// their natural keys, so concurrent resyncs are safe to race.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) GetDays(ctx context.Context, userID string) (_ []DayRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.getDays")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx,
		`SELECT data FROM health_cache WHERE user_id = $1 ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DayRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var day DayRecord
		if err := json.Unmarshal(data, &day); err != nil {
			return nil, fmt.Errorf("unmarshal day record: %w", err)
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func (r *Repo) GetWorkouts(ctx context.Context, userID string) (_ []WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.getWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx,
		`SELECT data FROM workout_cache WHERE user_id = $1 ORDER BY date`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []WorkoutRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var workout WorkoutRecord
		if err := json.Unmarshal(data, &workout); err != nil {
			return nil, fmt.Errorf("unmarshal workout record: %w", err)
		}
		workouts = append(workouts, workout)
	}
	return workouts, rows.Err()
}

// LastSyncedAt returns the newest synced_at over the user's cached day
// rows, or nil when nothing was ever cached.
func (r *Repo) LastSyncedAt(ctx context.Context, userID string) (_ *time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.lastSyncedAt")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var syncedAt *time.Time
	if err := r.db.QueryRow(ctx,
		`SELECT MAX(synced_at) FROM health_cache WHERE user_id = $1`,
		userID,
	).Scan(&syncedAt); err != nil {
		return nil, err
	}
	return syncedAt, nil
}

func (r *Repo) UpsertDays(ctx context.Context, userID string, days []DayRecord, syncedAt time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.upsertDays")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	for _, day := range days {
		data, err := json.Marshal(day)
		if err != nil {
			return fmt.Errorf("marshal day record %s: %w", day.Date, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO health_cache (user_id, date, data, synced_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, date) DO UPDATE SET
				data = EXCLUDED.data,
				synced_at = EXCLUDED.synced_at`,
			userID, day.Date, data, syncedAt,
		); err != nil {
			return fmt.Errorf("upsert day %s: %w", day.Date, err)
		}
	}
	return nil
}

func (r *Repo) UpsertWorkouts(ctx context.Context, userID string, workouts []WorkoutRecord, syncedAt time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.upsertWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	for _, workout := range workouts {
		data, err := json.Marshal(workout)
		if err != nil {
			return fmt.Errorf("marshal workout %s: %w", workout.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO workout_cache (user_id, workout_id, date, data, synced_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, workout_id) DO UPDATE SET
				date = EXCLUDED.date,
				data = EXCLUDED.data,
				synced_at = EXCLUDED.synced_at`,
			userID, workout.ID, workout.Date, data, syncedAt,
		); err != nil {
			return fmt.Errorf("upsert workout %s: %w", workout.ID, err)
		}
	}
	return nil
}

func (r *Repo) DeleteAllForUser(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.healthdata.deleteAllForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := r.db.Exec(ctx, `DELETE FROM health_cache WHERE user_id = $1`, userID); err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `DELETE FROM workout_cache WHERE user_id = $1`, userID)
	return err
}
