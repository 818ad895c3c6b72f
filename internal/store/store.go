package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// ErrNotFound is returned when a meal does not exist.
var ErrNotFound = eris.New("store: meal not found")

// defaultListLimit caps ListMeals when no limit is given.
const defaultListLimit = 100

// Store defines the persistence interface for analyzed meals.
type Store interface {
	// SaveMeal inserts rec, assigning its ID and CreatedAt.
	SaveMeal(ctx context.Context, rec *model.MealRecord) error
	GetMeal(ctx context.Context, id string) (*model.MealRecord, error)
	// ListMeals returns a user's meals, newest first.
	ListMeals(ctx context.Context, filter model.MealFilter) ([]model.MealRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func listLimit(f model.MealFilter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
