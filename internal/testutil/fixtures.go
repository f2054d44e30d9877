package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// HistoryBuilder creates generation history entries with a builder pattern
type HistoryBuilder struct {
	entry domain.GenerationHistory
}

// NewHistoryBuilder creates a HistoryBuilder with one image by default
func NewHistoryBuilder(id int64) *HistoryBuilder {
	return &HistoryBuilder{
		entry: domain.GenerationHistory{
			ID:     id,
			Prompt: fmt.Sprintf("prompt %d", id),
			Status: "COMPLETED",
			GeneratedImages: []domain.GeneratedImage{
				{ID: id * 10, S3URL: fmt.Sprintf("https://cdn.example/history/%d.png", id)},
			},
			CreatedAt: time.Date(2026, 1, 1, 0, 0, int(id), 0, time.UTC),
		},
	}
}

// WithModel sets the model the entry was generated with
func (b *HistoryBuilder) WithModel(id int64, title string) *HistoryBuilder {
	b.entry.ModelID = &id
	b.entry.ModelTitle = title
	return b
}

// WithImages replaces the generated image URLs
func (b *HistoryBuilder) WithImages(urls ...string) *HistoryBuilder {
	b.entry.GeneratedImages = nil
	for i, u := range urls {
		b.entry.GeneratedImages = append(b.entry.GeneratedImages, domain.GeneratedImage{
			ID:    b.entry.ID*10 + int64(i),
			S3URL: u,
		})
	}
	return b
}

// WithoutImages leaves the entry with no generated images
func (b *HistoryBuilder) WithoutImages() *HistoryBuilder {
	b.entry.GeneratedImages = []domain.GeneratedImage{}
	return b
}

func (b *HistoryBuilder) Build() domain.GenerationHistory {
	return b.entry
}

// HistoryFixtures returns entries with ids 1..n
func HistoryFixtures(n int) []domain.GenerationHistory {
	out := make([]domain.GenerationHistory, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, NewHistoryBuilder(int64(i)).Build())
	}
	return out
}

// HistoryIDs returns the ids of entries in order
func HistoryIDs(entries []domain.GenerationHistoryEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// TrainingJobFixture builds a training job for a named model
func TrainingJobFixture(id int64, modelName string) domain.TrainingJob {
	return domain.TrainingJob{
		ID:       id,
		Status:   "COMPLETED",
		Progress: 100,
		Model: domain.TrainingModel{
			ID:                id * 100,
			ModelName:         modelName,
			BaseModel:         "SDXL",
			ModelThumbnailURL: fmt.Sprintf("https://cdn.example/models/%d.png", id),
		},
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ProfileFixture returns a complete user profile
func ProfileFixture() *domain.UserProfile {
	return &domain.UserProfile{
		ID:              7,
		Email:           "user@blueming.ai",
		Nickname:        "bloom",
		ProfileImageURL: "https://cdn.example/avatar.png",
		Role:            "USER",
		CreatedAt:       time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
	}
}

// LoginResultFixture returns a test-login response carrying tokens
func LoginResultFixture() *domain.TestLoginResult {
	return &domain.TestLoginResult{
		AccessToken:     "test-access",
		RefreshToken:    "test-refresh",
		UserID:          3,
		Email:           "tester@blueming.ai",
		Nickname:        "tester",
		ProfileImageURL: "https://cdn.example/tester.png",
	}
}

// SignedToken issues an HS256 JWT for subject expiring at exp
func SignedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
