package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	// TypePurgeFile removes a deleted media item's file from storage
	TypePurgeFile = "media:purge_file"
	// TypeSendContact mails a stored contact form message
	TypeSendContact = "contact:send"
)

// Queue names, matching the worker's queue weights
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// PurgeFilePayload is the payload of a purge task
type PurgeFilePayload struct {
	FileKey string `json:"file_key"`
}

// NewPurgeFileTask creates a task to delete a stored file
func NewPurgeFileTask(fileKey string) (*asynq.Task, error) {
	if fileKey == "" {
		return nil, fmt.Errorf("file key is required")
	}
	payload, err := json.Marshal(PurgeFilePayload{
		FileKey: fileKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePurgeFile, payload, asynq.MaxRetry(5), asynq.Queue(QueueDefault)), nil
}

// ParsePurgeFilePayload parses the payload of a purge task
func ParsePurgeFilePayload(task *asynq.Task) (PurgeFilePayload, error) {
	var payload PurgeFilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.FileKey == "" {
		return payload, fmt.Errorf("payload has no file key")
	}
	return payload, nil
}

// SendContactPayload is the payload of a contact delivery task
type SendContactPayload struct {
	ContactID string `json:"contact_id"`
}

// NewSendContactTask creates a task to mail a contact message
func NewSendContactTask(contactID string) (*asynq.Task, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contact id is required")
	}
	payload, err := json.Marshal(SendContactPayload{
		ContactID: contactID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSendContact, payload, asynq.MaxRetry(10), asynq.Queue(QueueDefault)), nil
}

// ParseSendContactPayload parses the payload of a contact delivery task
func ParseSendContactPayload(task *asynq.Task) (SendContactPayload, error) {
	var payload SendContactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.ContactID == "" {
		return payload, fmt.Errorf("payload has no contact id")
	}
	return payload, nil
}
