// Package store abstracts persistence of user records. Two implementations
// exist: a Postgres-backed store for normal deployments and an in-memory
// store used when no database is configured. The implementation is chosen
// once at startup and never branched on per-call.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ammachi-ai/backend/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when a create would violate the unique
	// email or external-id constraint. The constraint is the only backstop
	// against concurrent registrations for the same email.
	ErrDuplicateUser = errors.New("user already exists")
)

// UserStore is the persistence contract for application user records.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// FindByKey resolves a user by email or external id, whichever matches.
	FindByKey(ctx context.Context, key string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	// UpdateFields applies a column → value map to one user record.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// IncrementCounter bumps one of the activity counters by delta.
	IncrementCounter(ctx context.Context, id uuid.UUID, counter string, delta int) error
	// Deactivate soft-deletes a user record.
	Deactivate(ctx context.Context, id uuid.UUID) error
}
