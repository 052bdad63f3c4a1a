// Package media is the client for the remote media collection. Every call
// carries the current session's credentials and a 401/403 answer clears the
// session it was issued under. Writes first make sure a csrftoken cookie is
// held so they can echo it.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
	"github.com/bodhini-dev/mediadmin/internal/mediatype"
)

// CollectionPath is the media collection resource
const CollectionPath = "/api/media/"

// Operation names carried in *client.Error.Op
const (
	OpList   = "list media"
	OpCreate = "create media"
	OpDelete = "delete media"
)

// InputRequiredMessage is shown when create is called without a title or file
const InputRequiredMessage = "Please provide a title and select a file."

// Item is a media object as returned by the server
type Item struct {
	ID          client.ItemID  `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	MediaType   mediatype.Type `json:"media_type" yaml:"media_type"`
	File        string         `json:"file" yaml:"file"`
	UploadedAt  *time.Time     `json:"uploaded_at,omitempty" yaml:"uploaded_at,omitempty"`
}

// CreateInput is the form for a new media item
type CreateInput struct {
	Title       string `validate:"required,max=200"`
	Description string
	// MediaType is detected from File when empty
	MediaType string
	Filename  string
	File      []byte `validate:"required,min=1"`
}

// Sessions is the part of the session manager the resource client needs
type Sessions interface {
	Issue(includeContentType bool) session.Ticket
	Invalidate(gen uint64) bool
	Stale(gen uint64) bool
	Current() session.Session
}

// Client performs list/create/delete against the media collection
type Client struct {
	api      *client.Client
	sessions Sessions
	validate *validator.Validate
	logger   zerolog.Logger
}

// New creates a resource client sharing the transport of api
func New(api *client.Client, sessions Sessions, logger zerolog.Logger) *Client {
	return &Client{
		api:      api,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
	}
}

// List returns every media item. An empty collection is not an error.
func (c *Client) List(ctx context.Context) ([]Item, error) {
	const op = OpList

	ticket := c.sessions.Issue(true)
	resp, err := c.do(ctx, op, http.MethodGet, CollectionPath, ticket, nil)
	if err != nil {
		return nil, err
	}

	items := []Item{}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return items, nil
	}
	if err := resp.Decode(op, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Create uploads a new item and returns the server's copy of it
func (c *Client) Create(ctx context.Context, in CreateInput) (*Item, error) {
	const op = OpCreate

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := c.validate.Struct(in); err != nil {
		return nil, &client.Error{Kind: client.KindValidation, Op: op, Message: inputMessage(err), Err: err}
	}

	kind, err := resolveType(in.MediaType, in.File)
	if err != nil {
		return nil, &client.Error{Kind: client.KindValidation, Op: op, Message: err.Error(), Err: err}
	}

	body, contentType, err := encodeForm(in, kind)
	if err != nil {
		return nil, &client.Error{Kind: client.KindTransport, Op: op, Err: err}
	}

	if err := c.api.EnsureCSRFToken(ctx, op, CollectionPath); err != nil {
		return nil, err
	}

	// The session never sets Content-Type for multipart; the boundary comes
	// from the form writer.
	ticket := c.sessions.Issue(false)
	ticket.Header.Set("Content-Type", contentType)

	resp, err := c.do(ctx, op, http.MethodPost, CollectionPath, ticket, body)
	if err != nil {
		return nil, err
	}

	var item Item
	if err := resp.Decode(op, &item); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("id", item.ID.String()).Str("media_type", string(item.MediaType)).Msg("Media created")
	return &item, nil
}

// Delete removes one item. It fails locally when no session is held.
func (c *Client) Delete(ctx context.Context, id client.ItemID) error {
	const op = OpDelete

	if id == "" {
		return &client.Error{Kind: client.KindValidation, Op: op, Message: "media id is required"}
	}
	if !c.sessions.Current().Authenticated() {
		return &client.Error{Kind: client.KindUnauthorized, Op: op, Message: "not authenticated"}
	}

	if err := c.api.EnsureCSRFToken(ctx, op, CollectionPath); err != nil {
		return err
	}

	ticket := c.sessions.Issue(true)
	path := CollectionPath + url.PathEscape(id.String()) + "/"
	_, err := c.do(ctx, op, http.MethodDelete, path, ticket, nil)
	return err
}

// do sends one request under ticket and applies the session rules to the
// answer: responses for a superseded session are dropped, 401/403 clears
// the session the request was issued under, other non-2xx become errors.
func (c *Client) do(ctx context.Context, op, method, path string, ticket session.Ticket, body io.Reader) (*client.Response, error) {
	resp, err := c.api.Do(ctx, op, method, path, ticket.Header, body)
	if err != nil {
		return nil, err
	}

	if c.sessions.Stale(ticket.Generation) {
		c.logger.Debug().Str("op", op).Int("status", resp.Status).Msg("Discarding response for a superseded session")
		return nil, &client.Error{Kind: client.KindStaleSession, Op: op, Status: resp.Status, Message: "session changed while the request was in flight"}
	}

	if client.IsAuthStatus(resp.Status) {
		if c.sessions.Invalidate(ticket.Generation) {
			c.logger.Debug().Str("op", op).Int("status", resp.Status).Msg("Session cleared after auth rejection")
		}
		return nil, resp.Err(op)
	}

	if err := resp.Err(op); err != nil {
		return nil, err
	}
	return resp, nil
}

// resolveType validates an explicit media type or sniffs one from the file
func resolveType(explicit string, data []byte) (mediatype.Type, error) {
	if strings.TrimSpace(explicit) != "" {
		return mediatype.Parse(explicit)
	}
	detected, err := mediatype.Detect(data)
	if err != nil {
		return "", fmt.Errorf("%w; pass --type to set it explicitly", err)
	}
	return detected.Type, nil
}

// encodeForm builds the multipart body: title, description, media_type, file
func encodeForm(in CreateInput, kind mediatype.Type) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", in.Title},
		{"description", in.Description},
		{"media_type", string(kind)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write %s field: %w", f[0], err)
		}
	}

	filename := filepath.Base(in.Filename)
	if filename == "." || filename == "/" || filename == "" {
		filename = "upload"
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(in.File); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// inputMessage turns validator errors into a user message
func inputMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return InputRequiredMessage
	}
	for _, fe := range verrs {
		if fe.Field() == "Title" && fe.Tag() == "max" {
			return "Title must be at most 200 characters."
		}
	}
	return InputRequiredMessage
}
