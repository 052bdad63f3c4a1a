package models

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/mediatype"
)

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// Config represents the global configuration for the single-tenant deployment
// This is a singleton model (only one row should exist)
type Config struct {
	BaseModel
	JWTSecret string `json:"-" gorm:"type:varchar(64);not null"` // Auto-generated on first boot (64 hex chars)
}

// User is an account that can obtain API tokens. Only staff users may
// change the media collection.
type User struct {
	BaseModel
	Username     string    `json:"username" gorm:"uniqueIndex;not null;size:150"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	IsStaff      bool      `json:"is_staff" gorm:"not null;default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Media is one uploaded image, audio or video file
type Media struct {
	BaseModel
	Title       string         `json:"title" gorm:"not null;size:200"`
	Description string         `json:"description" gorm:"type:text"`
	MediaType   mediatype.Type `json:"media_type" gorm:"not null;size:10"`
	// FileKey locates the file in the storage backend
	FileKey     string    `json:"-" gorm:"not null;uniqueIndex"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at" gorm:"index;not null"`
}

// BeforeCreate stamps the upload time
func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.UploadedAt.IsZero() {
		m.UploadedAt = time.Now().UTC()
	}
	return m.BaseModel.BeforeCreate(tx)
}

// Event is an upcoming happening announced next to the library
type Event struct {
	BaseModel
	Title            string    `json:"title" gorm:"not null;size:255"`
	Description      string    `json:"description" gorm:"type:text;not null"`
	EventDate        time.Time `json:"event_date" gorm:"index;not null"`
	Location         string    `json:"location" gorm:"size:255"`
	RegistrationLink string    `json:"registration_link" gorm:"size:500"`
	PublishedAt      time.Time `json:"published_at" gorm:"not null"`
}

// BeforeCreate stamps the publication time
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.PublishedAt.IsZero() {
		e.PublishedAt = time.Now().UTC()
	}
	return e.BaseModel.BeforeCreate(tx)
}

// ContactMessage is a contact form submission. SentAt stays nil until it
// has been mailed.
type ContactMessage struct {
	BaseModel
	Name    string     `json:"name" gorm:"not null;size:100"`
	Email   string     `json:"email" gorm:"not null"`
	Subject string     `json:"subject" gorm:"size:200"`
	Message string     `json:"message" gorm:"type:text;not null"`
	SentAt  *time.Time `json:"sent_at"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	models := []interface{}{
		&User{}, &Config{}, &Media{}, &Event{}, &ContactMessage{},
	}

	return db.AutoMigrate(models...)
}

// EnsureConfig loads the singleton config, creating it with a fresh JWT
// secret on first boot
func EnsureConfig(db *gorm.DB) (*Config, error) {
	var cfg Config
	err := db.First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 64 hex characters = 32 bytes of randomness
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg = Config{JWTSecret: hex.EncodeToString(secret)}
	if err := db.Create(&cfg).Error; err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	return &cfg, nil
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}

// ListMedia returns every media item, newest first
func ListMedia(db *gorm.DB) ([]Media, error) {
	var items []Media
	if err := db.Order("uploaded_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListEvents returns every event, soonest first
func ListEvents(db *gorm.DB) ([]Event, error) {
	var events []Event
	if err := db.Order("event_date ASC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkContactSent records that a contact message was delivered
func MarkContactSent(db *gorm.DB, id string, at time.Time) error {
	return db.Model(&ContactMessage{}).Where("id = ?", id).Update("sent_at", at.UTC()).Error
}

// ReferencedFileKeys returns the set of file keys still used by a Media row
func ReferencedFileKeys(db *gorm.DB) (map[string]struct{}, error) {
	var keys []string
	if err := db.Model(&Media{}).Pluck("file_key", &keys).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// TypeStats aggregates the media of one type
type TypeStats struct {
	MediaType  mediatype.Type `json:"media_type"`
	Count      int64          `json:"count"`
	TotalBytes int64          `json:"total_bytes"`
}

// LibraryStats returns item counts and stored bytes per media type
func LibraryStats(db *gorm.DB) ([]TypeStats, error) {
	var stats []TypeStats
	err := db.Model(&Media{}).
		Select("media_type, COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_bytes").
		Group("media_type").
		Order("media_type").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
