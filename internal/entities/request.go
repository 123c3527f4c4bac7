package entities

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusQueued     RequestStatus = "queued"
	StatusProcessing RequestStatus = "processing"
	StatusDone       RequestStatus = "done"
	StatusFailed     RequestStatus = "failed"
)

// RequestInfo is the externally visible view of one queued request.
type RequestInfo struct {
	ID          uuid.UUID     `json:"id"`
	Status      RequestStatus `json:"status"`
	Done        int           `json:"done"`
	Total       int           `json:"total"`
	Error       string        `json:"error,omitempty"`
	ArchiveName string        `json:"archive_name,omitempty"`
	SubmittedAt time.Time     `json:"submitted_at"`
}
