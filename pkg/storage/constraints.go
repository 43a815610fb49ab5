package storage

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/reco-letter-api/pkg/errors"
)

// Constraints describes the file restrictions enforced on every upload path.
// The presigned flow validates before issuing a URL; the fallback flow re-validates
// because the bytes pass through the server.
type Constraints struct {
	MaxSizeBytes int64
	AllowedMIMEs []string
}

// Validate checks content type and declared size against the constraints.
func (c Constraints) Validate(contentType string, size int64) error {
	contentType = normalizeMIME(contentType)
	if contentType == "" {
		return appErrors.Clone(appErrors.ErrValidation, "content type is required")
	}
	if !c.allows(contentType) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %s is not allowed", contentType))
	}
	if size <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file size is required")
	}
	if c.MaxSizeBytes > 0 && size > c.MaxSizeBytes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds maximum size of %d bytes", c.MaxSizeBytes))
	}
	return nil
}

func (c Constraints) allows(contentType string) bool {
	if len(c.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range c.AllowedMIMEs {
		if normalizeMIME(allowed) == contentType {
			return true
		}
	}
	return false
}

// normalizeMIME strips parameters such as charset and lowercases the type.
func normalizeMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ";"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
