package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Get returns the stored profile, or an empty one if the user has
// never saved settings.
func (r *Repo) Get(ctx context.Context, userID string) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.settings.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	profile := &Profile{UserID: userID}
	err = r.db.QueryRow(
		ctx,
		`SELECT api_key, ai_model, units FROM profile WHERE user_id = $1;`,
		userID,
	).Scan(&profile.APIKey, &profile.AIModel, &profile.Units)
	if errors.Is(err, pgx.ErrNoRows) {
		return &Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

func (r *Repo) Upsert(ctx context.Context, profile *Profile) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.settings.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO profile (user_id, api_key, ai_model, units)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				api_key = EXCLUDED.api_key,
				ai_model = EXCLUDED.ai_model,
				units = EXCLUDED.units;`,
		profile.UserID, profile.APIKey, profile.AIModel, profile.Units,
	)
	return err
}

func (r *Repo) Delete(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.settings.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `DELETE FROM profile WHERE user_id = $1;`, userID)
	return err
}
