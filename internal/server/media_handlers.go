package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/mediatype"
	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/storage"
)

// sniffLen is how much of an upload is read to detect its type
const sniffLen = 3072

// MediaResponse is the public representation of a media item
type MediaResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	MediaType   mediatype.Type `json:"media_type"`
	File        string         `json:"file"`
	ContentType string         `json:"content_type"`
	Size        int64          `json:"size"`
	UploadedAt  time.Time      `json:"uploaded_at"`
}

// MediaForm holds the non-file fields of an upload or update
type MediaForm struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description"`
	MediaType   string `form:"media_type" validate:"omitempty,oneof=image audio video"`
}

func (s *Server) toResponse(c *gin.Context, m *models.Media) MediaResponse {
	return MediaResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		MediaType:   m.MediaType,
		File:        s.fileURL(c, m.FileKey),
		ContentType: m.ContentType,
		Size:        m.Size,
		UploadedAt:  m.UploadedAt,
	}
}

// fileURL makes storage URLs absolute, using PUBLIC_URL or the request's host
func (s *Server) fileURL(c *gin.Context, key string) string {
	u := s.store.URL(key)
	if !strings.HasPrefix(u, "/") {
		return u
	}

	base := s.config.Server.PublicURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + u
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

// @Summary List media
// @Description Lists every media item, newest first
// @Tags media
// @Produce json
// @Success 200 {array} MediaResponse
// @Router /api/media/ [get]
func (s *Server) listMedia(c *gin.Context) {
	items, err := models.ListMedia(s.db)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list media")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list media"})
		return
	}

	resp := make([]MediaResponse, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(c, &items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Get media
// @Tags media
// @Produce json
// @Param id path string true "Media ID"
// @Success 200 {object} MediaResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/media/{id}/ [get]
func (s *Server) getMedia(c *gin.Context) {
	var item models.Media
	if err := models.FindByID(s.db, c.Param("id"), &item); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c)
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load media")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load media"})
		return
	}
	c.JSON(http.StatusOK, s.toResponse(c, &item))
}

// @Summary Upload media
// @Description Stores a file and creates its media item (staff only)
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param media_type formData string false "image, audio or video; detected when omitted"
// @Param file formData file true "Media file"
// @Success 201 {object} MediaResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 413 {object} map[string]interface{}
// @Router /api/media/ [post]
func (s *Server) createMedia(c *gin.Context) {
	if !s.parseMediaForm(c, false) {
		return
	}
	defer c.Request.MultipartForm.RemoveAll()

	form := MediaForm{
		Title:       strings.TrimSpace(c.PostForm("title")),
		Description: strings.TrimSpace(c.PostForm("description")),
		MediaType:   strings.ToLower(strings.TrimSpace(c.PostForm("media_type"))),
	}
	if err := s.validator.Struct(&form); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"No file was submitted."}})
		return
	}

	item, ok := s.storeUpload(c, fh, form.MediaType)
	if !ok {
		return
	}
	item.Title = form.Title
	item.Description = form.Description

	if err := s.db.Create(&item).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create media")
		s.discardUpload(c, item.FileKey)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create media"})
		return
	}

	user, _ := CurrentUser(c)
	s.logger.Info().
		Str("media_id", item.ID).
		Str("media_type", string(item.MediaType)).
		Int64("size", item.Size).
		Str("user_id", user.ID).
		Msg("Media uploaded")

	c.JSON(http.StatusCreated, s.toResponse(c, &item))
}

// @Summary Update media
// @Description Replaces (PUT) or patches (PATCH) a media item's fields, and its file when one is sent (staff only)
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Media ID"
// @Param title formData string false "Title; required for PUT"
// @Param description formData string false "Description"
// @Param media_type formData string false "image, audio or video; must match the file"
// @Param file formData file false "Replacement media file"
// @Success 200 {object} MediaResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 413 {object} map[string]interface{}
// @Router /api/media/{id}/ [put]
// @Router /api/media/{id}/ [patch]
func (s *Server) updateMedia(c *gin.Context) {
	var item models.Media
	if err := models.FindByID(s.db, c.Param("id"), &item); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c)
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load media")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update media"})
		return
	}

	if !s.parseMediaForm(c, true) {
		return
	}
	if mf := c.Request.MultipartForm; mf != nil {
		defer mf.RemoveAll()
	}

	// PATCH leaves absent fields alone; PUT must carry a title
	partial := c.Request.Method == http.MethodPatch
	form := MediaForm{Title: item.Title, Description: item.Description}
	if !partial {
		form.Title = ""
	}
	if v, ok := c.GetPostForm("title"); ok {
		form.Title = strings.TrimSpace(v)
	}
	if v, ok := c.GetPostForm("description"); ok {
		form.Description = strings.TrimSpace(v)
	}
	form.MediaType = strings.ToLower(strings.TrimSpace(c.PostForm("media_type")))
	if err := s.validator.Struct(&form); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	var fh *multipart.FileHeader
	if c.Request.MultipartForm != nil {
		var err error
		fh, err = c.FormFile("file")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"file": []string{"The submitted file could not be read."}})
			return
		}
	}

	oldKey := item.FileKey
	if fh != nil {
		stored, ok := s.storeUpload(c, fh, form.MediaType)
		if !ok {
			return
		}
		item.FileKey = stored.FileKey
		item.MediaType = stored.MediaType
		item.ContentType = stored.ContentType
		item.Size = stored.Size
	} else if form.MediaType != "" && mediatype.Type(form.MediaType) != item.MediaType {
		c.JSON(http.StatusBadRequest, gin.H{"media_type": []string{
			fmt.Sprintf("File content is %s, not %s.", item.MediaType, form.MediaType),
		}})
		return
	}
	item.Title = form.Title
	item.Description = form.Description

	if err := s.db.Save(&item).Error; err != nil {
		s.logger.Error().Err(err).Str("media_id", item.ID).Msg("Failed to update media")
		if item.FileKey != oldKey {
			s.discardUpload(c, item.FileKey)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update media"})
		return
	}

	// A failed purge leaves the replaced file for the orphan sweeper
	if item.FileKey != oldKey {
		if err := s.purger.Purge(c.Request.Context(), oldKey); err != nil {
			s.logger.Warn().Err(err).Str("file_key", oldKey).Msg("Failed to purge replaced media file")
		}
	}

	user, _ := CurrentUser(c)
	s.logger.Info().
		Str("media_id", item.ID).
		Bool("file_replaced", item.FileKey != oldKey).
		Str("user_id", user.ID).
		Msg("Media updated")

	c.JSON(http.StatusOK, s.toResponse(c, &item))
}

// parseMediaForm caps the body at the upload limit and parses it, answering
// 413 or 400 itself. Urlencoded bodies are only accepted when allowPlain is set.
func (s *Server) parseMediaForm(c *gin.Context, allowPlain bool) bool {
	limit := s.config.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	err := c.Request.ParseMultipartForm(32 << 20)
	if err == nil || (allowPlain && errors.Is(err, http.ErrNotMultipart)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"detail": fmt.Sprintf("Upload exceeds the %d MB limit.", limit>>20),
		})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"detail": "Multipart form parse error - " + err.Error()})
	return false
}

// storeUpload sniffs an uploaded file, checks it against the declared type
// and writes it to storage. The returned Media carries only the file fields.
func (s *Server) storeUpload(c *gin.Context, fh *multipart.FileHeader, declared string) (models.Media, bool) {
	if fh.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"The submitted file is empty."}})
		return models.Media{}, false
	}

	file, err := fh.Open()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to open upload")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read upload"})
		return models.Media{}, false
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"The submitted file could not be read."}})
		return models.Media{}, false
	}
	detected, err := mediatype.Detect(head[:n])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"file": []string{"Upload a valid image, audio or video file."}})
		return models.Media{}, false
	}
	if declared != "" && mediatype.Type(declared) != detected.Type {
		c.JSON(http.StatusBadRequest, gin.H{"media_type": []string{
			fmt.Sprintf("File content is %s, not %s.", detected.Type, declared),
		}})
		return models.Media{}, false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		s.logger.Error().Err(err).Msg("Failed to rewind upload")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read upload"})
		return models.Media{}, false
	}

	key := storage.NewKey(fh.Filename, detected.Extension)
	if err := s.store.Put(c.Request.Context(), key, file, fh.Size, detected.ContentType); err != nil {
		s.logger.Error().Err(err).Str("file_key", key).Msg("Failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store file"})
		return models.Media{}, false
	}

	return models.Media{
		MediaType:   detected.Type,
		FileKey:     key,
		ContentType: detected.ContentType,
		Size:        fh.Size,
	}, true
}

// discardUpload removes a stored file whose row could not be written
func (s *Server) discardUpload(c *gin.Context, key string) {
	if err := s.store.Delete(c.Request.Context(), key); err != nil {
		s.logger.Warn().Err(err).Str("file_key", key).Msg("Failed to remove stored file")
	}
}

// @Summary Delete media
// @Description Deletes a media item and purges its file (staff only)
// @Tags media
// @Param id path string true "Media ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/media/{id}/ [delete]
func (s *Server) deleteMedia(c *gin.Context) {
	var item models.Media
	if err := models.FindByID(s.db, c.Param("id"), &item); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			notFound(c)
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load media")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete media"})
		return
	}

	if err := s.db.Delete(&item).Error; err != nil {
		s.logger.Error().Err(err).Str("media_id", item.ID).Msg("Failed to delete media")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete media"})
		return
	}

	// The row is gone either way; a failed purge leaves an orphan for the sweeper
	if err := s.purger.Purge(c.Request.Context(), item.FileKey); err != nil {
		s.logger.Warn().Err(err).Str("file_key", item.FileKey).Msg("Failed to purge media file")
	}

	s.logger.Info().Str("media_id", item.ID).Msg("Media deleted")
	c.Status(http.StatusNoContent)
}
