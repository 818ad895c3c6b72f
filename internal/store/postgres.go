package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id         TEXT NOT NULL,
	meal_date       TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	meal_type       TEXT NOT NULL,
	foods           JSONB NOT NULL DEFAULT '[]'::jsonb,
	nutrition       JSONB NOT NULL,
	provider        TEXT NOT NULL,
	raw             TEXT NOT NULL,
	image_url       TEXT NOT NULL DEFAULT '',
	audio_url       TEXT NOT NULL DEFAULT '',
	transcript      TEXT NOT NULL DEFAULT '',
	normalized_text TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals(user_id, meal_date);
CREATE INDEX IF NOT EXISTS idx_meals_user_created ON meals(user_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveMeal(ctx context.Context, rec *model.MealRecord) error {
	foods, nutrition, err := marshalMeal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: save meal")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO meals (`+mealColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, rec.UserID, rec.Date, string(rec.Source), string(rec.MealType),
		foods, nutrition, string(rec.Provider), rec.Raw,
		rec.ImageURL, rec.AudioURL, rec.Transcript, rec.NormalizedText, now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert meal")
	}
	rec.ID = id
	rec.CreatedAt = now
	return nil
}

func (s *PostgresStore) GetMeal(ctx context.Context, id string) (*model.MealRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+mealColumns+` FROM meals WHERE id = $1`, id)
	rec, err := scanMeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get meal %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListMeals(ctx context.Context, filter model.MealFilter) ([]model.MealRecord, error) {
	query := `SELECT ` + mealColumns + ` FROM meals WHERE user_id = $1`
	args := []any{filter.UserID}
	argIdx := 2

	if filter.Date != "" {
		query += fmt.Sprintf(` AND meal_date = $%d`, argIdx)
		args = append(args, filter.Date)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list meals")
	}
	defer rows.Close()

	meals := []model.MealRecord{}
	for rows.Next() {
		rec, err := scanMeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan meal")
		}
		meals = append(meals, *rec)
	}
	return meals, eris.Wrap(rows.Err(), "postgres: list meals iterate")
}
