package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhini-dev/mediadmin/internal/models"
)

const msgDatetimeFormat = "Datetime has wrong format. Use one of these formats instead: YYYY-MM-DDThh:mm[:ss[.uuuuuu]][+HH:MM|-HH:MM|Z]."

// eventDateLayouts are tried in order; zoneless times are taken as UTC
var eventDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// EventRequest is the body of an event creation
type EventRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	Description      string `json:"description" validate:"required"`
	EventDate        string `json:"event_date" validate:"required"`
	Location         string `json:"location" validate:"max=255"`
	RegistrationLink string `json:"registration_link" validate:"omitempty,url,max=500"`
}

// EventResponse is the public representation of an event
type EventResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	EventDate        time.Time `json:"event_date"`
	Location         string    `json:"location"`
	RegistrationLink string    `json:"registration_link"`
	PublishedAt      time.Time `json:"published_at"`
}

func toEventResponse(e *models.Event) EventResponse {
	return EventResponse{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		EventDate:        e.EventDate,
		Location:         e.Location,
		RegistrationLink: e.RegistrationLink,
		PublishedAt:      e.PublishedAt,
	}
}

func parseEventDate(s string) (time.Time, bool) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// @Summary List events
// @Description Lists every event, soonest first
// @Tags events
// @Produce json
// @Success 200 {array} EventResponse
// @Router /api/media/events/ [get]
func (s *Server) listEvents(c *gin.Context) {
	events, err := models.ListEvents(s.db)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list events"})
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toEventResponse(&events[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Create event
// @Description Announces an event (staff only)
// @Tags events
// @Accept json
// @Produce json
// @Param request body EventRequest true "Event"
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/media/events/create/ [post]
func (s *Server) createEvent(c *gin.Context) {
	var req EventRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	req.RegistrationLink = strings.TrimSpace(req.RegistrationLink)

	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}
	date, ok := parseEventDate(strings.TrimSpace(req.EventDate))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"event_date": []string{msgDatetimeFormat}})
		return
	}

	event := models.Event{
		Title:            req.Title,
		Description:      req.Description,
		EventDate:        date,
		Location:         req.Location,
		RegistrationLink: req.RegistrationLink,
	}
	if err := s.db.Create(&event).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create event")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create event"})
		return
	}

	user, _ := CurrentUser(c)
	s.logger.Info().
		Str("event_id", event.ID).
		Time("event_date", event.EventDate).
		Str("user_id", user.ID).
		Msg("Event created")

	c.JSON(http.StatusCreated, toEventResponse(&event))
}
