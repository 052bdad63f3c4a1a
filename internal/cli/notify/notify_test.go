package notify

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"list unauthorized", &client.Error{Kind: client.KindUnauthorized, Op: media.OpList, Status: http.StatusUnauthorized}, MsgListUnauthorized},
		{"create unauthorized", &client.Error{Kind: client.KindUnauthorized, Op: media.OpCreate, Status: http.StatusForbidden}, MsgUnauthorized},
		{"delete unauthorized", &client.Error{Kind: client.KindUnauthorized, Op: media.OpDelete, Status: http.StatusUnauthorized}, MsgUnauthorized},
		{"list server", &client.Error{Kind: client.KindServer, Op: media.OpList, Status: http.StatusInternalServerError}, MsgListFailed},
		{"list transport", &client.Error{Kind: client.KindTransport, Op: media.OpList}, MsgListFailed},
		{"create server", &client.Error{Kind: client.KindServer, Op: media.OpCreate, Status: http.StatusBadRequest}, MsgCreateFailed},
		{"delete server", &client.Error{Kind: client.KindServer, Op: media.OpDelete, Status: http.StatusNotFound}, MsgDeleteFailed},
		{"create validation", &client.Error{Kind: client.KindValidation, Op: media.OpCreate, Message: media.InputRequiredMessage}, media.InputRequiredMessage},
		{"stale", &client.Error{Kind: client.KindStaleSession, Op: media.OpDelete}, MsgStale},
		{"register offline", &client.Error{Kind: client.KindTransport, Op: client.OpRegister}, MsgRegisterOffline},
		{"register server", &client.Error{Kind: client.KindServer, Op: client.OpRegister, Message: "Email: taken"}, "Email: taken"},
		{"login rejected", &session.AuthError{Message: "Unable to log in with provided credentials."}, "Unable to log in with provided credentials."},
		{"login forbidden", &session.AuthError{Message: "Login successful, but you are not an administrator.", Forbidden: true}, "Login successful, but you are not an administrator."},
		{"login offline", &client.Error{Kind: client.KindTransport, Op: client.OpLogin, Err: errors.New("connection refused")}, "Login failed: connection refused"},
		{"local session", &client.Error{Kind: client.KindUnauthorized, Op: session.OpSession, Message: "not authenticated"}, "not authenticated"},
		{"wrapped", fmt.Errorf("upload: %w", &client.Error{Kind: client.KindServer, Op: media.OpCreate}), MsgCreateFailed},
		{"plain", errors.New("failed to load config"), "failed to load config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestFailure_PrintsServerDetail(t *testing.T) {
	var buf bytes.Buffer
	n := New(&buf)

	msg := n.Failure(&client.Error{Kind: client.KindServer, Op: media.OpCreate, Status: 400, Message: "title: This field is required."})

	assert.Equal(t, MsgCreateFailed, msg)
	assert.Equal(t, "✗ "+MsgCreateFailed+"\n  title: This field is required.\n", buf.String())
}

func TestNotifier_NoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	n := New(&buf)

	n.Success(MsgMediaAdded)
	n.Info("hello")

	assert.Equal(t, "✓ "+MsgMediaAdded+"\nhello\n", buf.String())
}
