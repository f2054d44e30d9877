package domain

import "time"

// UserProfile is the authenticated user as returned by the Gateway.
// It is always replaced wholesale, never patched field by field.
type UserProfile struct {
	ID              int64     `json:"id"`
	Email           string    `json:"email"`
	Nickname        string    `json:"nickname"`
	ProfileImageURL string    `json:"profileImageUrl"`
	Role            string    `json:"role"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ProfileUpdate is the partial body sent when editing the profile.
type ProfileUpdate struct {
	Nickname        string  `json:"nickname"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
}

type TestLoginResult struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	UserID          int64  `json:"userId"`
	Email           string `json:"email"`
	Nickname        string `json:"nickname"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// Profile builds the session profile carried by a test-login response.
func (r *TestLoginResult) Profile() *UserProfile {
	return &UserProfile{
		ID:              r.UserID,
		Email:           r.Email,
		Nickname:        r.Nickname,
		ProfileImageURL: r.ProfileImageURL,
	}
}
