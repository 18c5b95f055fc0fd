package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ammachi-ai/backend/internal/models"
)

// PostgresStore persists users through gorm. It also backs the sqlite driver
// in unit tests; nothing here is Postgres-specific beyond the DSN.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*models.User, error) {
	if strings.Contains(key, "@") {
		return s.FindByEmail(ctx, key)
	}
	user, err := s.FindByExternalID(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s.FindByEmail(ctx, key)
	}
	return user, err
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementCounter(ctx context.Context, id uuid.UUID, counter string, delta int) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		UpdateColumn(counter, gorm.Expr(counter+" + ?", delta)).Error
}

func (s *PostgresStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation matches unique-constraint errors from both the Postgres
// and sqlite drivers.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
