package client

import (
	"context"
	"net/http"
	"strings"
)

const (
	LoginPath    = "/api/auth/token/"
	RegisterPath = "/api/auth/register/"
	SetupPath    = "/api/setup/"

	OpLogin    = "login"
	OpRegister = "register"
	OpSetup    = "setup"

	loginFallback    = "Login failed."
	registerFallback = "Registration failed. An unknown error occurred."
	registerOK       = "Registration successful!"
	registerCSRF     = "Registration forbidden. Please refresh the page and try again."
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents the token endpoint response
type TokenResponse struct {
	Token    string `json:"token"`
	UserID   ItemID `json:"user_id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// RegisterResponse carries the server's confirmation message
type RegisterResponse struct {
	Message string `json:"message"`
}

// SetupRequest creates the first administrator on a fresh server
type SetupRequest RegisterRequest

// credentialForm is anything submitted to a credential endpoint
type credentialForm interface {
	validate() error
}

func (r LoginRequest) validate() error {
	if strings.TrimSpace(r.Username) == "" || r.Password == "" {
		return &Error{Kind: KindValidation, Op: OpLogin, Message: "Please enter both username and password."}
	}
	return nil
}

func (r RegisterRequest) validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" || r.Password2 == "" {
		return &Error{Kind: KindValidation, Op: OpRegister, Message: "All registration fields are required."}
	}
	if r.Password != r.Password2 {
		return &Error{Kind: KindValidation, Op: OpRegister, Message: "Passwords do not match."}
	}
	return nil
}

func (r SetupRequest) validate() error {
	if err := RegisterRequest(r).validate(); err != nil {
		err.(*Error).Op = OpSetup
		return err
	}
	return nil
}

// submitCredentials validates form locally and posts it to endpoint. It is the
// one routine behind both login and registration; callers map the response.
// The CSRF token is echoed when the server has issued one.
func (c *Client) submitCredentials(ctx context.Context, op, endpoint string, form credentialForm) (*Response, error) {
	if err := form.validate(); err != nil {
		return nil, err
	}

	header := http.Header{}
	if token := c.CSRFToken(); token != "" {
		header.Set(CSRFHeader, token)
	}

	return c.postJSON(ctx, op, endpoint, header, form)
}

// Login exchanges credentials for an API token. A rejection is returned as an
// *Error whose Message is the server's first non-field error, or "Login failed.".
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	const op = OpLogin

	resp, err := c.submitCredentials(ctx, op, LoginPath, LoginRequest{
		Username: strings.TrimSpace(username),
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		msg := FieldError(resp.Body, "non_field_errors")
		if msg == "" {
			msg = ExtractMessage(resp.Body, loginFallback)
		}
		return nil, &Error{
			Kind:    KindServer,
			Op:      op,
			Status:  resp.Status,
			Message: msg,
			Body:    string(resp.Body),
		}
	}

	var token TokenResponse
	if err := resp.Decode(op, &token); err != nil {
		return nil, err
	}
	if token.Token == "" {
		return nil, &Error{Kind: KindTransport, Op: op, Status: resp.Status, Message: "malformed response: missing token", Body: string(resp.Body)}
	}

	return &token, nil
}

// Register creates a (non-staff) account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	const op = OpRegister

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	resp, err := c.submitCredentials(ctx, op, RegisterPath, req)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, &Error{
			Kind:    KindServer,
			Op:      op,
			Status:  resp.Status,
			Message: registrationMessage(resp),
			Body:    string(resp.Body),
		}
	}

	var out RegisterResponse
	// Some servers answer with an empty body; that is still a success
	if len(resp.Body) > 0 {
		if err := resp.Decode(op, &out); err != nil {
			return nil, err
		}
	}
	if out.Message == "" {
		out.Message = registerOK
	}
	return &out, nil
}

// registrationMessage picks the most specific message a failed registration reported
func registrationMessage(resp *Response) string {
	if resp.Status == http.StatusForbidden {
		return registerCSRF
	}
	if msg := FieldError(resp.Body, "detail"); msg != "" {
		return msg
	}
	for _, f := range []struct{ field, label string }{
		{"email", "Email"},
		{"username", "Username"},
		{"password", "Password"},
	} {
		if msg := FieldError(resp.Body, f.field); msg != "" {
			return f.label + ": " + msg
		}
	}
	return registerFallback
}

// Setup creates the first administrator account. The server refuses once
// any user exists.
func (c *Client) Setup(ctx context.Context, req SetupRequest) (*RegisterResponse, error) {
	const op = OpSetup

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	resp, err := c.submitCredentials(ctx, op, SetupPath, req)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &Error{
			Kind:    KindServer,
			Op:      op,
			Status:  resp.Status,
			Message: ExtractMessage(resp.Body, "Setup failed."),
			Body:    string(resp.Body),
		}
	}

	var out RegisterResponse
	if err := resp.Decode(op, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
