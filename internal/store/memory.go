package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammachi-ai/backend/internal/models"
)

// MemoryStore is the fallback user store used when DATABASE_URL is not set.
// Records do not survive a restart; deactivation is an isActive flag so the
// record stays visible to admin tooling.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*memoryRecord
	byEmail map[string]uuid.UUID
	byExtID map[string]uuid.UUID
}

type memoryRecord struct {
	user     models.User
	isActive bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]*memoryRecord),
		byEmail: make(map[string]uuid.UUID),
		byExtID: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.activeCopy(id)
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExtID[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.activeCopy(id)
}

func (s *MemoryStore) FindByKey(ctx context.Context, key string) (*models.User, error) {
	if strings.Contains(key, "@") {
		return s.FindByEmail(ctx, key)
	}
	user, err := s.FindByExternalID(ctx, key)
	if err == ErrNotFound {
		return s.FindByEmail(ctx, key)
	}
	return user, err
}

func (s *MemoryStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateUser
	}
	if user.ExternalID != nil {
		if _, exists := s.byExtID[*user.ExternalID]; exists {
			return ErrDuplicateUser
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleFarmer
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	rec := &memoryRecord{user: *user, isActive: true}
	s.users[user.ID] = rec
	s.byEmail[email] = user.ID
	if user.ExternalID != nil {
		s.byExtID[*user.ExternalID] = user.ID
	}
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[user.ID]
	if !ok || !rec.isActive {
		return ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(rec.user.Email))
	if rec.user.ExternalID != nil {
		delete(s.byExtID, *rec.user.ExternalID)
	}

	user.UpdatedAt = time.Now()
	rec.user = *user
	s.byEmail[strings.ToLower(user.Email)] = user.ID
	if user.ExternalID != nil {
		s.byExtID[*user.ExternalID] = user.ID
	}
	return nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok || !rec.isActive {
		return ErrNotFound
	}
	if rec.user.ExternalID != nil {
		delete(s.byExtID, *rec.user.ExternalID)
	}
	applyFields(&rec.user, fields)
	if rec.user.ExternalID != nil {
		s.byExtID[*rec.user.ExternalID] = id
	}
	rec.user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) IncrementCounter(ctx context.Context, id uuid.UUID, counter string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok || !rec.isActive {
		return ErrNotFound
	}
	switch counter {
	case "crops_scanned":
		rec.user.CropsScanned += delta
	case "questions_asked":
		rec.user.QuestionsAsked += delta
	case "days_active":
		rec.user.DaysActive += delta
	}
	rec.user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok || !rec.isActive {
		return ErrNotFound
	}
	rec.isActive = false
	delete(s.byEmail, strings.ToLower(rec.user.Email))
	if rec.user.ExternalID != nil {
		delete(s.byExtID, *rec.user.ExternalID)
	}
	return nil
}

// activeCopy returns a copy so callers cannot mutate the store through the
// returned pointer. Caller must hold at least a read lock.
func (s *MemoryStore) activeCopy(id uuid.UUID) (*models.User, error) {
	rec, ok := s.users[id]
	if !ok || !rec.isActive {
		return nil, ErrNotFound
	}
	u := rec.user
	return &u, nil
}

// applyFields mirrors the column names the Postgres store accepts.
func applyFields(u *models.User, fields map[string]interface{}) {
	for col, val := range fields {
		switch col {
		case "display_name":
			if v, ok := val.(string); ok {
				u.DisplayName = v
			}
		case "language":
			if v, ok := val.(string); ok {
				u.Language = v
			}
		case "district":
			if v, ok := val.(string); ok {
				u.District = v
			}
		case "state":
			if v, ok := val.(string); ok {
				u.State = v
			}
		case "phone_number":
			if v, ok := val.(string); ok {
				u.PhoneNumber = v
			}
		case "external_id":
			if v, ok := val.(string); ok {
				u.ExternalID = &v
			}
		case "experience":
			if v, ok := toInt(val); ok {
				u.Experience = v
			}
		case "farm_size":
			if v, ok := toFloat(val); ok {
				u.FarmSize = v
			}
		case "primary_crops":
			if v, ok := val.(models.StringList); ok {
				u.PrimaryCrops = v
			}
		case "farms":
			if v, ok := val.(models.FarmList); ok {
				u.Farms = v
			}
		case "last_login_at":
			if v, ok := val.(time.Time); ok {
				u.LastLoginAt = &v
			}
		}
	}
}

func toInt(val interface{}) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func toFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}
