package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ammachi-ai/backend/internal/identity"
	"github.com/ammachi-ai/backend/internal/models"
	"github.com/ammachi-ai/backend/internal/store"
)

// ErrDuplicateUser is returned when a registration targets an email either
// store already knows.
var ErrDuplicateUser = errors.New("an account with this email already exists")

// profileWhitelist maps updatable payload fields to store columns. Fields not
// listed here are silently dropped from update payloads; that permissive
// contract is deliberate, clients send whole form state.
var profileWhitelist = map[string]string{
	"displayName":  "display_name",
	"experience":   "experience",
	"farmSize":     "farm_size",
	"district":     "district",
	"state":        "state",
	"phoneNumber":  "phone_number",
	"primaryCrops": "primary_crops",
	"language":     "language",
	"farms":        "farms",
}

// Reconciler keeps one person consistent across the external auth provider
// and the application user store. It is the only component that reads both
// stores and the only writer of the external-id link.
type Reconciler struct {
	store    store.UserStore
	provider identity.Provider
}

func NewReconciler(userStore store.UserStore, provider identity.Provider) *Reconciler {
	return &Reconciler{store: userStore, provider: provider}
}

// RegisterInput carries the registration payload. Profile fields beyond
// the credential pair are optional.
type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	Language     string
	District     string
	State        string
	PhoneNumber  string
	PrimaryCrops []string
	Experience   int
}

// Register creates the (ExternalIdentity, ApplicationUser) pair. The provider
// identity is created first; if the application record then fails to save,
// the provider identity is deleted best-effort. A crash between the two
// steps leaves an orphaned provider identity, a known gap with no
// transaction boundary to close it.
func (r *Reconciler) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	email := normalizeEmail(in.Email)

	// Application store is checked first so a duplicate never touches the
	// provider at all.
	if _, err := r.store.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrDuplicateUser
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}

	// Best-effort provider existence check. A lookup failure that is not
	// "not found" does not block registration; the provider's own
	// EMAIL_EXISTS on SignUp is the real gate.
	if _, err := r.provider.LookupByEmail(ctx, email); err == nil {
		return nil, "", ErrDuplicateUser
	} else if errors.Is(err, identity.ErrProviderDisabled) {
		return nil, "", err
	} else if !errors.Is(err, identity.ErrUserNotFound) {
		log.Printf("[Reconciler] provider lookup for %s failed, continuing registration: %v", email, err)
	}

	ident, token, err := r.provider.SignUp(ctx, email, in.Password, in.DisplayName)
	if err != nil {
		if errors.Is(err, identity.ErrEmailExists) {
			return nil, "", ErrDuplicateUser
		}
		return nil, "", err
	}

	user := &models.User{
		ExternalID:   &ident.ExternalID,
		Email:        email,
		DisplayName:  in.DisplayName,
		Role:         models.RoleFarmer,
		Language:     defaultString(in.Language, "en"),
		District:     in.District,
		State:        in.State,
		PhoneNumber:  in.PhoneNumber,
		PrimaryCrops: in.PrimaryCrops,
		Experience:   in.Experience,
	}

	if err := r.store.Create(ctx, user); err != nil {
		// Compensate: remove the just-created provider identity so the two
		// stores do not drift. The delete is best-effort; its failure is
		// logged and the original store error is what the caller sees.
		if delErr := r.provider.Delete(ctx, ident.ExternalID); delErr != nil {
			log.Printf("[Reconciler] compensation delete of identity %s failed: %v", ident.ExternalID, delErr)
		}
		if errors.Is(err, store.ErrDuplicateUser) {
			return nil, "", ErrDuplicateUser
		}
		return nil, "", fmt.Errorf("failed to save user profile: %w", err)
	}

	return user, token, nil
}

// Login verifies the credential against the provider, then resolves the
// application record by email, creating a minimal one first-seen.
func (r *Reconciler) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = normalizeEmail(email)

	ident, token, err := r.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, "", r.refineSignInError(ctx, email, err)
	}

	user, err := r.resolveUser(ctx, ident)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// refineSignInError distinguishes "no such account" from "wrong password" by
// a secondary lookup, so the client can offer sign-up instead of retry.
func (r *Reconciler) refineSignInError(ctx context.Context, email string, signInErr error) error {
	if !errors.Is(signInErr, identity.ErrInvalidCredential) {
		return signInErr
	}
	if _, err := r.provider.LookupByEmail(ctx, email); errors.Is(err, identity.ErrUserNotFound) {
		return identity.ErrUserNotFound
	}
	return identity.ErrInvalidCredential
}

// VerifyToken validates a bearer token and returns the merged profile.
// Verifying the same valid token twice resolves to the same record.
func (r *Reconciler) VerifyToken(ctx context.Context, token string) (*models.User, error) {
	ident, err := r.provider.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return r.resolveUser(ctx, ident)
}

// resolveUser finds or creates the application record for a verified
// identity and stamps login activity.
func (r *Reconciler) resolveUser(ctx context.Context, ident *identity.Identity) (*models.User, error) {
	email := normalizeEmail(ident.Email)
	user, err := r.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{
			ExternalID:  &ident.ExternalID,
			Email:       email,
			DisplayName: ident.DisplayName,
			Role:        models.RoleFarmer,
			Language:    "en",
		}
		if createErr := r.store.Create(ctx, user); createErr != nil {
			// Lost a race with a concurrent first-seen create; the record
			// exists now, use it.
			if errors.Is(createErr, store.ErrDuplicateUser) {
				user, err = r.store.FindByEmail(ctx, email)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, fmt.Errorf("failed to create user profile: %w", createErr)
			}
		}
	} else if err != nil {
		return nil, err
	}

	r.mergeIdentity(user, ident)
	r.touchLogin(ctx, user)
	return user, nil
}

// mergeIdentity fills profile gaps from provider-held fields. Application
// fields always win; the external id is cached once and never silently
// replaced with a different value.
func (r *Reconciler) mergeIdentity(user *models.User, ident *identity.Identity) {
	if user.DisplayName == "" {
		user.DisplayName = ident.DisplayName
	}
	if user.ExternalID == nil && ident.ExternalID != "" {
		user.ExternalID = &ident.ExternalID
	} else if user.ExternalID != nil && ident.ExternalID != "" && *user.ExternalID != ident.ExternalID {
		log.Printf("[Reconciler] external id mismatch for %s: have %s, provider says %s",
			user.Email, *user.ExternalID, ident.ExternalID)
	}
}

// touchLogin stamps lastLoginAt and bumps daysActive at most once per
// calendar day. Failures are logged, never surfaced; login already succeeded.
func (r *Reconciler) touchLogin(ctx context.Context, user *models.User) {
	now := time.Now()
	newDay := user.LastLoginAt == nil || !sameDay(*user.LastLoginAt, now)

	fields := map[string]interface{}{"last_login_at": now}
	if user.ExternalID != nil {
		fields["external_id"] = *user.ExternalID
	}
	if err := r.store.UpdateFields(ctx, user.ID, fields); err != nil {
		log.Printf("[Reconciler] failed to stamp login for %s: %v", user.Email, err)
	}
	if newDay {
		if err := r.store.IncrementCounter(ctx, user.ID, "days_active", 1); err != nil {
			log.Printf("[Reconciler] failed to bump days_active for %s: %v", user.Email, err)
		}
		user.DaysActive++
	}
	user.LastLoginAt = &now
}

// GetProfile resolves a user by email or external id.
func (r *Reconciler) GetProfile(ctx context.Context, key string) (*models.User, error) {
	return r.store.FindByKey(ctx, key)
}

// UpdateProfile applies a partial update, keeping only whitelisted fields.
// Unknown fields are dropped without error.
func (r *Reconciler) UpdateProfile(ctx context.Context, key string, updates map[string]interface{}) (*models.User, error) {
	user, err := r.store.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	for name, value := range updates {
		column, ok := profileWhitelist[name]
		if !ok {
			continue
		}
		coerced, ok := coerceField(name, value)
		if !ok {
			continue
		}
		fields[column] = coerced
	}
	if len(fields) == 0 {
		return user, nil
	}

	if err := r.store.UpdateFields(ctx, user.ID, fields); err != nil {
		return nil, err
	}
	return r.store.FindByKey(ctx, key)
}

// RecordScan bumps the crops-scanned counter after a disease detection is
// saved against a user. Best-effort.
func (r *Reconciler) RecordScan(ctx context.Context, key string) {
	r.bumpCounter(ctx, key, "crops_scanned")
}

// RecordQuestion bumps the questions-asked counter for chat activity.
func (r *Reconciler) RecordQuestion(ctx context.Context, key string) {
	r.bumpCounter(ctx, key, "questions_asked")
}

func (r *Reconciler) bumpCounter(ctx context.Context, key, counter string) {
	user, err := r.store.FindByKey(ctx, key)
	if err != nil {
		return
	}
	if err := r.store.IncrementCounter(ctx, user.ID, counter, 1); err != nil {
		log.Printf("[Reconciler] failed to bump %s for %s: %v", counter, user.Email, err)
	}
}

// coerceField converts JSON-decoded payload values into the types the store
// columns expect. A value of the wrong shape is dropped like an unknown field.
func coerceField(name string, value interface{}) (interface{}, bool) {
	switch name {
	case "displayName", "district", "state", "phoneNumber", "language":
		v, ok := value.(string)
		return v, ok
	case "experience":
		v, ok := value.(float64)
		if !ok || v < 0 {
			return nil, false
		}
		return int(v), true
	case "farmSize":
		v, ok := value.(float64)
		return v, ok
	case "primaryCrops":
		items, ok := value.([]interface{})
		if !ok {
			return nil, false
		}
		crops := make(models.StringList, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			crops = append(crops, s)
		}
		return crops, true
	case "farms":
		items, ok := value.([]interface{})
		if !ok {
			return nil, false
		}
		farms := make(models.FarmList, 0, len(items))
		for _, item := range items {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			farm := models.Farm{}
			if v, ok := entry["name"].(string); ok {
				farm.Name = v
			}
			if v, ok := entry["acres"].(float64); ok {
				farm.Acres = v
			}
			if v, ok := entry["location"].(string); ok {
				farm.Location = v
			}
			if crops, ok := entry["crops"].([]interface{}); ok {
				for _, c := range crops {
					if s, ok := c.(string); ok {
						farm.Crops = append(farm.Crops, s)
					}
				}
			}
			farms = append(farms, farm)
		}
		return farms, true
	}
	return nil, false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
