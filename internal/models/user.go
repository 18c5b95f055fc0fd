package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

// User is the application-owned profile record. The external auth provider
// keeps its own identity record; the two are joined by email, with ExternalID
// as a cached cross-reference that is set once and never silently replaced.
type User struct {
	ID         uuid.UUID      `gorm:"type:varchar(36);primarykey" json:"id"`
	ExternalID *string        `gorm:"uniqueIndex" json:"externalId,omitempty"`
	Email      string         `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	DisplayName string `gorm:"size:100" json:"displayName"`
	Role        string `gorm:"size:20;not null;default:'farmer'" json:"role"`
	Language    string `gorm:"size:10;default:'en'" json:"language"`
	District    string `gorm:"size:100" json:"district"`
	State       string `gorm:"size:100" json:"state"`
	PhoneNumber string `gorm:"size:20" json:"phoneNumber"`

	PrimaryCrops StringList `gorm:"type:text" json:"primaryCrops"`
	Farms        FarmList   `gorm:"type:text" json:"farms"`
	FarmSize     float64    `json:"farmSize"`
	Experience   int        `gorm:"check:experience >= 0" json:"experience"`

	CropsScanned   int `json:"cropsScanned"`
	QuestionsAsked int `json:"questionsAsked"`
	DaysActive     int `json:"daysActive"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Farm describes a single plot belonging to a farmer.
type Farm struct {
	Name     string   `json:"name"`
	Acres    float64  `json:"acres"`
	Location string   `json:"location"`
	Crops    []string `json:"crops"`
}

// StringList stores an ordered list of strings as a JSON text column so the
// same model works on Postgres and the sqlite test driver.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

// FarmList stores farm entries as a JSON text column.
type FarmList []Farm

func (l FarmList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *FarmList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}

// BeforeCreate assigns a UUID primary key and defaults the role.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleFarmer
	}
	return nil
}
