// Package notify prints the one-line outcome messages shown after each
// command and maps errors to the message a user should see.
package notify

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
)

// Outcome messages
const (
	MsgLoginSuccess     = "Login successful! Welcome, Admin."
	MsgWelcomeBack      = "Welcome back, Admin!"
	MsgLoggedOut        = "Logged out successfully."
	MsgMediaAdded       = "Media added successfully!"
	MsgMediaDeleted     = "Media deleted successfully!"
	MsgNoMedia          = "No media found. Add some using 'mediadmin upload'."
	MsgListUnauthorized = "Unauthorized. Please log in."
	MsgUnauthorized     = "Unauthorized. Please log in again."
	MsgListFailed       = "Failed to load media. Please check backend connection."
	MsgCreateFailed     = "Failed to add media. Please check your input and backend."
	MsgDeleteFailed     = "Failed to delete media. Please try again."
	MsgRegisterOffline  = "Registration failed: Could not connect to the server."
	MsgStale            = "Session changed while the request was running. Nothing was applied."
)

// Notifier writes colored single-line notifications
type Notifier struct {
	out     io.Writer
	success *color.Color
	failure *color.Color
	info    *color.Color
	detail  *color.Color
}

// New returns a Notifier for out. Colors are disabled unless out is a terminal.
func New(out io.Writer) *Notifier {
	n := &Notifier{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		info:    color.New(color.FgCyan),
		detail:  color.New(color.Faint),
	}
	if !isTerminal(out) {
		for _, c := range []*color.Color{n.success, n.failure, n.info, n.detail} {
			c.DisableColor()
		}
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Success prints a success line
func (n *Notifier) Success(msg string) {
	n.success.Fprintln(n.out, "✓ "+msg)
}

// Error prints an error line
func (n *Notifier) Error(msg string) {
	n.failure.Fprintln(n.out, "✗ "+msg)
}

// Info prints a neutral line
func (n *Notifier) Info(msg string) {
	n.info.Fprintln(n.out, msg)
}

// Failure prints the user message for err, followed by the server's own
// message when it adds something. It returns the primary message.
func (n *Notifier) Failure(err error) string {
	msg := Message(err)
	n.Error(msg)
	if d := detail(err); d != "" && d != msg {
		n.detail.Fprintln(n.out, "  "+d)
	}
	return msg
}

// Message maps an error to the notification text for it
func Message(err error) string {
	if err == nil {
		return ""
	}

	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}

	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case client.KindValidation:
		return apiErr.Message
	case client.KindStaleSession:
		return MsgStale
	case client.KindUnauthorized:
		if apiErr.Op == session.OpSession {
			return apiErr.Message
		}
		if apiErr.Op == media.OpList {
			return MsgListUnauthorized
		}
		return MsgUnauthorized
	}

	switch apiErr.Op {
	case media.OpList:
		return MsgListFailed
	case media.OpCreate:
		return MsgCreateFailed
	case media.OpDelete:
		return MsgDeleteFailed
	case client.OpRegister:
		if apiErr.Kind == client.KindTransport {
			return MsgRegisterOffline
		}
		return apiErr.Message
	case client.OpSetup:
		if apiErr.Kind == client.KindServer {
			return apiErr.Message
		}
	case client.OpLogin:
		if apiErr.Kind == client.KindTransport {
			return fmt.Sprintf("Login failed: %s", transportReason(apiErr))
		}
		return apiErr.Message
	}
	return apiErr.Error()
}

// detail is the server-provided explanation behind a generic message
func detail(err error) string {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return ""
	}
	if apiErr.Kind != client.KindServer && apiErr.Kind != client.KindTransport {
		return ""
	}
	switch apiErr.Op {
	case media.OpList, media.OpCreate, media.OpDelete:
	default:
		return ""
	}
	if apiErr.Kind == client.KindTransport {
		return transportReason(apiErr)
	}
	return apiErr.Message
}

func transportReason(e *client.Error) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return "could not connect to the server"
}
