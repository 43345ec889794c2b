package outbox

import (
	"time"
)

// Status is the delivery state of an outbox message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is one durable notification awaiting delivery. Content is fully
// rendered before the message is persisted, so a retry always resends
// exactly what was queued even if templates change in between. The retry
// budget is stamped at queue time for the same reason: messages keep the
// ceiling they were created with across config changes.
type Message struct {
	ID           string         `bson:"_id"`
	Type         string         `bson:"type"`
	Recipient    string         `bson:"recipient"`
	Subject      string         `bson:"subject,omitempty"`
	Content      string         `bson:"content"`
	TemplateData map[string]any `bson:"templateData,omitempty"`
	Status       Status         `bson:"status"`
	RetryCount   int            `bson:"retryCount"`
	MaxRetries   int            `bson:"maxRetries"`
	NextRetry    *time.Time     `bson:"nextRetry,omitempty"`
	SendAfter    time.Time      `bson:"sendAfter"`
	CreatedAt    time.Time      `bson:"createdAt"`
	SentAt       *time.Time     `bson:"sentAt,omitempty"`
	ErrorMessage string         `bson:"errorMessage,omitempty"`
}

// NewMessage is the caller-facing shape for queueing a notification.
type NewMessage struct {
	Type         string
	Recipient    string
	Subject      string
	TemplateData map[string]any
	SendAfter    time.Time
}

// Result summarizes one processing sweep.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Stats is an observability snapshot over a trailing window.
type Stats struct {
	Total         int            `json:"total"`
	Pending       int            `json:"pending"`
	Sent          int            `json:"sent"`
	Failed        int            `json:"failed"`
	ByType        map[string]int `json:"byType"`
	AvgRetryCount float64        `json:"avgRetryCount"`
}
