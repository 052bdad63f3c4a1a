package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bodhini-dev/mediadmin/internal/models"
)

// ContactRequest is a contact form submission
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required"`
}

// ContactResponse acknowledges a contact form submission
type ContactResponse struct {
	Message string `json:"message"`
}

// @Summary Submit contact form
// @Description Stores a message for the editors and mails it, or queues the mail when a worker runs
// @Tags contact
// @Accept json
// @Produce json
// @Param request body ContactRequest true "Message"
// @Success 200 {object} ContactResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/media/submit-contact/ [post]
func (s *Server) submitContact(c *gin.Context) {
	var req ContactRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)

	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	msg := models.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store contact message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message. Please try again later."})
		return
	}

	if err := s.contacts.Deliver(c.Request.Context(), msg.ID); err != nil {
		s.logger.Error().Err(err).Str("contact_id", msg.ID).Msg("Failed to deliver contact message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message. Please try again later."})
		return
	}

	c.JSON(http.StatusOK, ContactResponse{Message: "Message sent successfully!"})
}
