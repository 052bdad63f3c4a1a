package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/auth"
	"github.com/bodhini-dev/mediadmin/internal/models"
)

const (
	tokenPrefix  = "Token "
	bearerPrefix = "Bearer "

	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"

	userKey = "user"
)

// Response details, worded like the Django REST framework clients expect
const (
	detailNoCredentials = "Authentication credentials were not provided."
	detailInvalidToken  = "Invalid token."
	detailInvalidHeader = "Invalid token header. No credentials provided."
	detailForbidden     = "You do not have permission to perform this action."
	detailCSRF          = "CSRF Failed: CSRF token missing or incorrect."
	detailCSRFNoCookie  = "CSRF Failed: CSRF cookie not set."
)

var (
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrUserNotFound      = errors.New("user not found")
)

func setUser(c *gin.Context, user *models.User) {
	c.Set(userKey, user)
}

// CurrentUser returns the user the request authenticated as, if any
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// extractToken accepts "Token <t>" and "Bearer <t>"
func extractToken(authHeader string) (string, error) {
	var token string
	switch {
	case strings.HasPrefix(authHeader, tokenPrefix):
		token = strings.TrimPrefix(authHeader, tokenPrefix)
	case strings.HasPrefix(authHeader, bearerPrefix):
		token = strings.TrimPrefix(authHeader, bearerPrefix)
	default:
		return "", ErrInvalidAuthFormat
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, detail string) {
	log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(detail)
	if statusCode == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Token")
	}
	c.AbortWithStatusJSON(statusCode, gin.H{"detail": detail})
}

// TokenAuthMiddleware authenticates requests that carry an Authorization
// header. Requests without one continue anonymously; a header that does not
// resolve to a user is rejected with 401.
func TokenAuthMiddleware(db *gorm.DB, signer *auth.Signer, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		token, err := extractToken(authHeader)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, detailInvalidHeader)
			return
		}

		claims, err := signer.Validate(token)
		if err != nil {
			respondWithError(c, log, http.StatusUnauthorized, err, detailInvalidToken)
			return
		}

		// Staff status is read from the database, not the token, so
		// demotions apply immediately
		var user models.User
		if err := models.FindByID(db, claims.UserID, &user); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = ErrUserNotFound
			}
			respondWithError(c, log, http.StatusUnauthorized, err, detailInvalidToken)
			return
		}

		setUser(c, &user)
		c.Next()
	}
}

// StaffOnlyMiddleware requires an authenticated staff user
func StaffOnlyMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respondWithError(c, log, http.StatusUnauthorized, errors.New("no credentials"), detailNoCredentials)
			return
		}

		if !user.IsStaff {
			respondWithError(c, log, http.StatusForbidden, errors.New("not staff"), detailForbidden)
			return
		}

		c.Next()
	}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// CSRFMiddleware hands every client a csrftoken cookie. Unsafe requests that
// send the cookie back must echo it in X-CSRFToken, and unsafe requests with
// credentials must send the cookie. Paths listed in exempt skip the check.
func CSRFMiddleware(log zerolog.Logger, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(c *gin.Context) {
		checked := !safeMethod(c.Request.Method) && !skip[c.Request.URL.Path]

		cookie, err := c.Cookie(csrfCookie)
		if err != nil || cookie == "" {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     csrfCookie,
				Value:    strings.ReplaceAll(uuid.NewString(), "-", ""),
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
			})
			// Anonymous writes (register, setup) may be a client's first request
			if checked && c.GetHeader("Authorization") != "" {
				respondWithError(c, log, http.StatusForbidden, errors.New("csrf cookie missing"), detailCSRFNoCookie)
				return
			}
			c.Next()
			return
		}

		if checked {
			sent := c.GetHeader(csrfHeader)
			if subtle.ConstantTimeCompare([]byte(sent), []byte(cookie)) != 1 {
				respondWithError(c, log, http.StatusForbidden, errors.New("csrf mismatch"), detailCSRF)
				return
			}
		}

		c.Next()
	}
}
