package domain

import "time"

// Durable storage slot names for the token pair.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

// Session is the authenticated-identity state held by the token store.
type Session struct {
	AccessToken  string       `json:"accessToken,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	User         *UserProfile `json:"user,omitempty"`
}

func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

// StorageEntry is one durable key/value slot.
type StorageEntry struct {
	Key       string    `json:"key" gorm:"primaryKey;size:64"`
	Value     string    `json:"value" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StorageEntry) TableName() string {
	return "client_storage"
}
