package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starkhealth/backend/internal/providers"
	"github.com/starkhealth/backend/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTokenNotFound = errors.New("provider token not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Get(ctx context.Context, userID string, provider providers.Provider) (_ *ProviderToken, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM provider_token
		WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)

	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

// Upsert inserts the credential or replaces it if the user already
// connected this provider. A reconnect always starts from the new
// credential, never merges with the old one.
func (r *Repo) Upsert(ctx context.Context, token ProviderToken) (_ *ProviderToken, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if token.UserID == "" || !token.Provider.Valid() {
		return nil, errors.New("token user id or provider empty")
	}
	if token.AccessToken == "" {
		return nil, errors.New("token access token empty")
	}

	now := time.Now()
	err = r.db.QueryRow(ctx, `
		INSERT INTO provider_token (user_id, provider, access_token, refresh_token, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		token.UserID, token.Provider, token.AccessToken, token.RefreshToken,
		token.ExpiresAt, token.Scope, now,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert provider token: %w", err)
	}

	token.UpdatedAt = now
	return &token, nil
}

// UpdateCredentials writes the result of a refresh exchange. It is the
// only write path the refresh flow uses, keyed by id so a concurrent
// disconnect+reconnect cannot be overwritten by a stale refresh.
func (r *Repo) UpdateCredentials(ctx context.Context, id int, creds RefreshedCredentials) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.updateCredentials")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `
		UPDATE provider_token
		SET access_token = $1, refresh_token = $2, expires_at = $3, updated_at = $4
		WHERE id = $5`,
		creds.AccessToken, creds.RefreshToken, creds.ExpiresAt, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *Repo) ListForUser(ctx context.Context, userID string) (_ []ProviderToken, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.listForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM provider_token
		WHERE user_id = $1
		ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

// GetExpiringWithin returns refreshable credentials that expire inside
// the given window, for the background refresh job.
func (r *Repo) GetExpiringWithin(ctx context.Context, window time.Duration) (_ []ProviderToken, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.getExpiringWithin")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, provider, access_token, refresh_token, expires_at, scope, created_at, updated_at
		FROM provider_token
		WHERE expires_at IS NOT NULL AND expires_at < $1 AND refresh_token <> ''
		ORDER BY expires_at`,
		time.Now().Add(window),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTokens(rows)
}

func (r *Repo) ListUserIDsForProvider(ctx context.Context, provider providers.Provider) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.listUserIDsForProvider")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM provider_token WHERE provider = $1`,
		provider,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, userID string, provider providers.Provider) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx,
		`DELETE FROM provider_token WHERE user_id = $1 AND provider = $2`,
		userID, provider,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *Repo) DeleteAllForUser(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.tokens.deleteAllForUser")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, err = r.db.Exec(ctx, `DELETE FROM provider_token WHERE user_id = $1`, userID)
	return err
}

func scanToken(row pgx.Row) (*ProviderToken, error) {
	var t ProviderToken
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Provider, &t.AccessToken, &t.RefreshToken,
		&t.ExpiresAt, &t.Scope, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTokens(rows pgx.Rows) ([]ProviderToken, error) {
	var tokens []ProviderToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *t)
	}
	return tokens, rows.Err()
}
