package domain

import "time"

// Page is the Gateway's pagination envelope.
// Number is a pointer so a response that omits it can be told apart from page 0.
type Page[T any] struct {
	Content       []T   `json:"content"`
	Number        *int  `json:"number,omitempty"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Size          int   `json:"size"`
}

// HistoryPage is the accumulated view of a paginated collection.
type HistoryPage[T any] struct {
	Items      []T  `json:"items"`
	PageIndex  int  `json:"pageIndex"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// HasMorePages reports whether pages remain after pageIndex.
func HasMorePages(pageIndex, totalPages int) bool {
	return pageIndex < totalPages-1
}

type GeneratedImage struct {
	ID        int64     `json:"id"`
	S3URL     string    `json:"s3Url"`
	Seed      int64     `json:"seed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GenerationHistory is a generation result as the Gateway returns it.
type GenerationHistory struct {
	ID              int64            `json:"id"`
	Prompt          string           `json:"prompt"`
	NegativePrompt  string           `json:"negativePrompt,omitempty"`
	ModelID         *int64           `json:"modelId,omitempty"`
	ModelTitle      string           `json:"modelTitle,omitempty"`
	Status          string           `json:"status"`
	GeneratedImages []GeneratedImage `json:"generatedImages"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// GenerationHistoryEntry is the display form of a generation result.
type GenerationHistoryEntry struct {
	GenerationHistory
	ThumbnailURL *string `json:"thumbnailUrl"`
}

// NewGenerationHistoryEntry attaches the first generated image as thumbnail.
func NewGenerationHistoryEntry(h GenerationHistory) GenerationHistoryEntry {
	entry := GenerationHistoryEntry{GenerationHistory: h}
	if len(h.GeneratedImages) > 0 {
		u := h.GeneratedImages[0].S3URL
		entry.ThumbnailURL = &u
	}
	return entry
}

type TrainingModel struct {
	ID                int64  `json:"id"`
	ModelName         string `json:"modelName"`
	BaseModel         string `json:"baseModel"`
	ModelThumbnailURL string `json:"modelThumbnailUrl"`
}

// TrainingJob is a training job as the Gateway returns it.
type TrainingJob struct {
	ID        int64         `json:"id"`
	Status    string        `json:"status"`
	Progress  int           `json:"progress"`
	Model     TrainingModel `json:"model"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (j TrainingJob) ModelName() string         { return j.Model.ModelName }
func (j TrainingJob) BaseModel() string         { return j.Model.BaseModel }
func (j TrainingJob) ModelThumbnailURL() string { return j.Model.ModelThumbnailURL }

// TrainingHistoryEntry is the display form of a training job. ModelTitle and
// ModelThumbnail mirror ModelName and ModelThumbnailURL for older consumers.
type TrainingHistoryEntry struct {
	ID                int64     `json:"id"`
	Status            string    `json:"status"`
	Progress          int       `json:"progress"`
	ModelID           int64     `json:"modelId"`
	ModelName         string    `json:"modelName"`
	BaseModel         string    `json:"baseModel"`
	ModelThumbnailURL string    `json:"modelThumbnailUrl"`
	ModelTitle        string    `json:"modelTitle"`
	ModelThumbnail    string    `json:"modelThumbnail"`
	CreatedAt         time.Time `json:"createdAt"`
}

func NewTrainingHistoryEntry(job TrainingJob) TrainingHistoryEntry {
	return TrainingHistoryEntry{
		ID:                job.ID,
		Status:            job.Status,
		Progress:          job.Progress,
		ModelID:           job.Model.ID,
		ModelName:         job.ModelName(),
		BaseModel:         job.BaseModel(),
		ModelThumbnailURL: job.ModelThumbnailURL(),
		ModelTitle:        job.ModelName(),
		ModelThumbnail:    job.ModelThumbnailURL(),
		CreatedAt:         job.CreatedAt,
	}
}

// AvailableModel is a model usable as a generation history filter.
type AvailableModel struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type LoraModel struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	BaseModel    string `json:"baseModel,omitempty"`
	LikeCount    int    `json:"likeCount"`
	IsPublic     bool   `json:"isPublic"`
}
