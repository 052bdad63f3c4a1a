package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodhini-dev/mediadmin/internal/config"
	"github.com/bodhini-dev/mediadmin/internal/models"
)

var contactForm = map[string]string{
	"name":    "Asha",
	"email":   "asha@example.com",
	"subject": "Screening rights",
	"message": "Can we show the documentary?",
}

func TestSubmitContact_LoggedWithoutSMTP(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv, "/api/media/submit-contact/", contactForm)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Message sent successfully!", decode(t, w)["message"])

	var stored []models.ContactMessage
	require.NoError(t, srv.GetDB().Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, "asha@example.com", stored[0].Email)
	assert.NotNil(t, stored[0].SentAt)
}

func TestSubmitContact_SubjectIsOptional(t *testing.T) {
	srv := newTestServer(t)

	w := postJSON(srv, "/api/media/submit-contact/", map[string]string{
		"name": "Asha", "email": "asha@example.com", "message": "Hello",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSubmitContact_Validation(t *testing.T) {
	srv := newTestServer(t)

	with := func(key, value string) map[string]string {
		out := map[string]string{}
		for k, v := range contactForm {
			out[k] = v
		}
		out[key] = value
		return out
	}

	tests := []struct {
		name  string
		body  map[string]string
		field string
		msg   string
	}{
		{"missing name", with("name", ""), "name", msgRequired},
		{"long name", with("name", strings.Repeat("x", 101)), "name", "Ensure this field has no more than 100 characters."},
		{"bad email", with("email", "asha.example.com"), "email", msgEmailInvalid},
		{"long subject", with("subject", strings.Repeat("x", 201)), "subject", "Ensure this field has no more than 200 characters."},
		{"missing message", with("message", ""), "message", msgRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(srv, "/api/media/submit-contact/", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, []any{tt.msg}, decode(t, w)[tt.field])
		})
	}

	var count int64
	srv.GetDB().Model(&models.ContactMessage{}).Count(&count)
	assert.Zero(t, count)
}

func TestSubmitContact_MailFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mail = config.MailConfig{
		SMTPHost:  "127.0.0.1",
		SMTPPort:  1,
		SMTPTLS:   "none",
		From:      "mediad@example.com",
		ContactTo: "press@example.com",
	}
	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	w := postJSON(srv, "/api/media/submit-contact/", contactForm)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.Equal(t, "Failed to send message. Please try again later.", decode(t, w)["error"])

	// Kept unsent so it is not lost
	var stored models.ContactMessage
	require.NoError(t, srv.GetDB().First(&stored).Error)
	assert.Nil(t, stored.SentAt)
}
