package services

import (
	"context"

	"github.com/mshogin/assistant/internal/domain/models"
)

// IntentStrategy is one stage of the intent classification cascade.
// A (nil, nil) return means the strategy declined and the next stage runs.
type IntentStrategy interface {
	Name() string
	TryClassify(ctx context.Context, message string) (*models.IntentResult, error)
}

// EntityStrategy is one stage of the entity extraction cascade.
// A (nil, nil) return means the strategy declined and the next stage runs.
type EntityStrategy interface {
	Name() string
	TryExtract(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error)
}
