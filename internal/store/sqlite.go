package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	meal_date       TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	meal_type       TEXT NOT NULL,
	foods           TEXT NOT NULL,
	nutrition       TEXT NOT NULL,
	provider        TEXT NOT NULL,
	raw             TEXT NOT NULL,
	image_url       TEXT NOT NULL DEFAULT '',
	audio_url       TEXT NOT NULL DEFAULT '',
	transcript      TEXT NOT NULL DEFAULT '',
	normalized_text TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_meals_user_date ON meals(user_id, meal_date);
CREATE INDEX IF NOT EXISTS idx_meals_created_at ON meals(created_at);
`

const mealColumns = `id, user_id, meal_date, source, meal_type, foods, nutrition, provider, raw, ` +
	`image_url, audio_url, transcript, normalized_text, created_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveMeal(ctx context.Context, rec *model.MealRecord) error {
	foods, nutrition, err := marshalMeal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: save meal")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meals (`+mealColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.UserID, rec.Date, string(rec.Source), string(rec.MealType),
		string(foods), string(nutrition), string(rec.Provider), rec.Raw,
		rec.ImageURL, rec.AudioURL, rec.Transcript, rec.NormalizedText, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert meal")
	}
	rec.ID = id
	rec.CreatedAt = now
	return nil
}

func (s *SQLiteStore) GetMeal(ctx context.Context, id string) (*model.MealRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mealColumns+` FROM meals WHERE id = ?`, id)
	rec, err := scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get meal %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListMeals(ctx context.Context, filter model.MealFilter) ([]model.MealRecord, error) {
	query := `SELECT ` + mealColumns + ` FROM meals WHERE user_id = ?`
	args := []any{filter.UserID}
	if filter.Date != "" {
		query += ` AND meal_date = ?`
		args = append(args, filter.Date)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, listLimit(filter), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list meals")
	}
	defer rows.Close() //nolint:errcheck

	meals := []model.MealRecord{}
	for rows.Next() {
		rec, err := scanMeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan meal")
		}
		meals = append(meals, *rec)
	}
	return meals, eris.Wrap(rows.Err(), "sqlite: list meals iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMeal(row scannable) (*model.MealRecord, error) {
	var rec model.MealRecord
	var source, mealType, provider string
	var foods, nutrition []byte
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Date, &source, &mealType,
		&foods, &nutrition, &provider, &rec.Raw,
		&rec.ImageURL, &rec.AudioURL, &rec.Transcript, &rec.NormalizedText, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Source = model.Modality(source)
	rec.MealType = model.MealType(mealType)
	rec.Provider = model.ProviderTag(provider)
	if err := unmarshalMeal(&rec, foods, nutrition); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalMeal(rec *model.MealRecord) (foods, nutrition []byte, err error) {
	items := rec.Foods
	if items == nil {
		items = []model.FoodItem{}
	}
	foods, err = json.Marshal(items)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal foods")
	}
	nutrition, err = json.Marshal(rec.Nutrition)
	if err != nil {
		return nil, nil, eris.Wrap(err, "marshal nutrition")
	}
	return foods, nutrition, nil
}

func unmarshalMeal(rec *model.MealRecord, foods, nutrition []byte) error {
	if err := json.Unmarshal(foods, &rec.Foods); err != nil {
		return eris.Wrap(err, "unmarshal foods")
	}
	if err := json.Unmarshal(nutrition, &rec.Nutrition); err != nil {
		return eris.Wrap(err, "unmarshal nutrition")
	}
	return nil
}
