// Package session owns the console's belief about whether it holds a valid,
// privileged credential for a server.
//
// A Manager keeps the token, admin flag and username in memory and mirrors
// them into a Store so they survive process restarts. Every change to the
// session bumps a generation counter; requests are tagged with the
// generation they were issued under so that a response arriving after a
// logout or re-login cannot act on the newer session.
package session

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
)

// OpSession tags errors raised locally by the Manager
const OpSession = "session"

// State is the position of a Manager in the authentication state machine
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateForbidden
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the current credential
type Session struct {
	Token      string
	IsAdmin    bool
	Username   string
	Generation uint64
}

// Authenticated reports whether a token is held
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Authenticator exchanges credentials for a token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*client.TokenResponse, error)
}

// CSRFSource provides the forgery-protection token handed out by the server
type CSRFSource interface {
	CSRFToken() string
}

// Ticket is the header set for one request, tagged with the session
// generation it was issued under
type Ticket struct {
	Header     http.Header
	Generation uint64
}

// Manager is safe for concurrent use
type Manager struct {
	store  Store
	auth   Authenticator
	csrf   CSRFSource
	logger zerolog.Logger

	mu      sync.Mutex
	current Session
	state   State
	gen     uint64
}

// Option configures a Manager
type Option func(*Manager)

// WithCSRFSource overrides where the CSRF token is read from
func WithCSRFSource(src CSRFSource) Option {
	return func(m *Manager) {
		m.csrf = src
	}
}

// WithLogger attaches a logger for state transitions
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates an anonymous Manager. If auth also implements
// CSRFSource (as *client.Client does) it is used for CSRF tokens.
func NewManager(store Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		auth:   auth,
		logger: zerolog.Nop(),
		state:  StateAnonymous,
	}
	if src, ok := auth.(CSRFSource); ok {
		m.csrf = src
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the persisted session. A missing token yields an empty
// session and no error.
func (m *Manager) Restore() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	m.current = Session{Generation: m.gen}
	m.state = StateAnonymous

	token, err := m.get(KeyToken)
	if err != nil {
		return m.current, err
	}
	if token == "" {
		return m.current, nil
	}

	isStaff, err := m.get(KeyIsStaff)
	if err != nil {
		return m.current, err
	}
	username, err := m.get(KeyUsername)
	if err != nil {
		return m.current, err
	}

	m.current = Session{
		Token:      token,
		IsAdmin:    isStaff == "true",
		Username:   username,
		Generation: m.gen,
	}
	if m.current.IsAdmin {
		m.state = StateAuthenticated
	} else {
		m.state = StateForbidden
	}

	m.logger.Debug().Str("state", m.state.String()).Str("username", username).Msg("Session restored")
	return m.current, nil
}

// get reads one key, mapping ErrNotFound to ""
func (m *Manager) get(key string) (string, error) {
	value, err := m.store.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return value, err
}

// Login authenticates against the server. Only administrators get a
// session: a non-admin login discards the token and returns an *AuthError
// matching ErrForbidden. A rejected login returns an *AuthError carrying the
// server's message. Validation and transport failures are returned as the
// client's *client.Error.
func (m *Manager) Login(ctx context.Context, username, password string) (Session, error) {
	m.mu.Lock()
	m.state = StateAuthenticating
	startGen := m.gen
	m.mu.Unlock()

	resp, err := m.auth.Login(ctx, username, password)

	m.mu.Lock()
	defer m.mu.Unlock()

	// A logout (or another login) finished while we were waiting
	if m.gen != startGen {
		m.logger.Debug().Msg("Discarding login response for a superseded session")
		return m.current, &client.Error{Kind: client.KindStaleSession, Op: client.OpLogin, Message: "session changed while logging in"}
	}

	if err != nil {
		clearErr := m.resetLocked(StateAnonymous)

		var apiErr *client.Error
		if errors.As(err, &apiErr) && (apiErr.Kind == client.KindServer || apiErr.Kind == client.KindUnauthorized) {
			return m.current, &AuthError{Message: apiErr.Message, Status: apiErr.Status, Err: errors.Join(err, clearErr)}
		}
		return m.current, errors.Join(err, clearErr)
	}

	if !resp.IsStaff {
		clearErr := m.resetLocked(StateForbidden)
		m.logger.Info().Str("username", resp.Username).Msg("Non-admin login rejected")
		return m.current, &AuthError{
			Message:   forbiddenMessage,
			Forbidden: true,
			Err:       errors.Join(ErrForbidden, clearErr),
		}
	}

	if resp.Username == "" {
		resp.Username = username
	}

	for _, kv := range [][2]string{
		{KeyToken, resp.Token},
		{KeyIsStaff, strconv.FormatBool(resp.IsStaff)},
		{KeyUsername, resp.Username},
	} {
		if err := m.store.Set(kv[0], kv[1]); err != nil {
			clearErr := m.resetLocked(StateAnonymous)
			return m.current, errors.Join(err, clearErr)
		}
	}

	m.gen++
	m.current = Session{
		Token:      resp.Token,
		IsAdmin:    true,
		Username:   resp.Username,
		Generation: m.gen,
	}
	m.state = StateAuthenticated

	m.logger.Info().Str("username", resp.Username).Msg("Logged in")
	return m.current, nil
}

// Logout clears the in-memory and persisted session. It is idempotent.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resetLocked(StateAnonymous)
}

// resetLocked drops the session, starts a new generation and clears every
// persisted key. Callers hold m.mu.
func (m *Manager) resetLocked(next State) error {
	m.gen++
	m.current = Session{Generation: m.gen}
	m.state = next

	var errs []error
	for _, key := range Keys {
		if err := m.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate clears the session if gen is still the current generation. It
// reports whether anything was cleared. Used when the server answers 401/403.
func (m *Manager) Invalidate(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return false
	}
	if err := m.resetLocked(StateAnonymous); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clear persisted session")
	}
	m.logger.Info().Msg("Session invalidated by server")
	return true
}

// Stale reports whether the session has changed since gen was issued
func (m *Manager) Stale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return gen != m.gen
}

// Current returns a snapshot of the session
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current
}

// State returns the current state machine position
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// RequireAdmin fails unless an administrator session is held
func (m *Manager) RequireAdmin() error {
	s := m.Current()
	if !s.Authenticated() {
		return &client.Error{Kind: client.KindUnauthorized, Op: OpSession, Message: "not authenticated. Please run 'mediadmin login' first"}
	}
	if !s.IsAdmin {
		return &AuthError{Message: deniedMessage, Forbidden: true, Err: ErrForbidden}
	}
	return nil
}

// AuthHeaders returns the headers for an authenticated request. Content-Type
// is only set when includeContentType is true; multipart callers must leave
// it to the transport so the boundary is included.
func (m *Manager) AuthHeaders(includeContentType bool) http.Header {
	return m.Issue(includeContentType).Header
}

// Issue returns AuthHeaders together with the current generation
func (m *Manager) Issue(includeContentType bool) Ticket {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	header := http.Header{}
	if includeContentType {
		header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		header.Set("Authorization", "Token "+s.Token)
	}
	if m.csrf != nil {
		if token := m.csrf.CSRFToken(); token != "" {
			header.Set(client.CSRFHeader, token)
		}
	}
	return Ticket{Header: header, Generation: s.Generation}
}
