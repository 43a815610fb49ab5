package dto

import (
	"time"

	"github.com/noah-isme/reco-letter-api/internal/models"
	"github.com/noah-isme/reco-letter-api/pkg/storage"
)

// SubmitLetterPayload captures POST /portal/:token/submit. A submission must
// carry text content, an uploaded file, or both.
type SubmitLetterPayload struct {
	Content  string `json:"content" validate:"max=20000"`
	FileName string `json:"fileName" validate:"omitempty,max=255"`
	FileKey  string `json:"fileKey" validate:"omitempty,max=512"`
	FileType string `json:"fileType" validate:"omitempty,max=120"`
	FileSize int64  `json:"fileSize" validate:"omitempty,min=1"`
}

// HasContent reports whether the payload includes letter text.
func (p SubmitLetterPayload) HasContent() bool {
	return p.Content != ""
}

// HasFile reports whether the payload references an uploaded object.
func (p SubmitLetterPayload) HasFile() bool {
	return p.FileKey != ""
}

// UploadTargetPayload captures POST /portal/:token/upload.
type UploadTargetPayload struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=120"`
	FileSize    int64  `json:"fileSize" validate:"required,min=1"`
}

// UploadTargetResponse wraps the presigned target for the client PUT.
type UploadTargetResponse struct {
	Target storage.UploadTarget `json:"target"`
}

// FallbackUploadResponse describes the object stored by the server-side
// upload path. The client feeds these fields back into the submit payload.
type FallbackUploadResponse struct {
	FileKey  string `json:"fileKey"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

// PortalView is everything the recipient sees when opening their link.
type PortalView struct {
	Request      models.RecommendationRequest `json:"request"`
	Recipient    models.Recipient             `json:"recipient"`
	LatestLetter *models.RecommendationLetter `json:"latest_letter,omitempty"`
	Deadline     time.Time                    `json:"deadline"`
	DaysLeft     int                          `json:"days_left"`
}
