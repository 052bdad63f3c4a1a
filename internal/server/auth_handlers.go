package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/bodhini-dev/mediadmin/internal/auth"
	"github.com/bodhini-dev/mediadmin/internal/models"
)

const (
	msgBadCredentials   = "Unable to log in with provided credentials."
	msgAllRequired      = "All fields are required."
	msgPasswordMismatch = "Passwords do not match."
	msgUsernameTaken    = "A user with that username already exists."
	msgEmailTaken       = "A user with that email already exists."
	msgEmailInvalid     = "Email is not valid"
	msgEmailValid       = "Email is valid"
	msgRegistered       = "Registration successful!"
	msgSetupDone        = "Setup already completed."
	msgAdminCreated     = "Administrator account created. You can now log in."
)

// TokenRequest represents a token login request
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse mirrors the token endpoint of the Django media backend
type TokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsStaff  bool   `json:"is_staff"`
}

// RegisterRequest represents an account registration, also used for first-run setup
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// @Summary First-run setup
// @Description Creates the first staff user (only works if no users exist)
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Setup request"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/setup/ [post]
func (s *Server) setupFirstAdmin(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if !s.checkRegistration(c, &req) {
		return
	}

	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count users")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"detail": msgSetupDone})
		return
	}

	user, ok := s.createUser(c, &req, true)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("First staff user created")
	c.JSON(http.StatusCreated, MessageResponse{Message: msgAdminCreated})
}

// @Summary Obtain API token
// @Description Authenticate with username and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Token request"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/token/ [post]
func (s *Server) obtainToken(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	badCredentials := gin.H{"non_field_errors": []string{msgBadCredentials}}

	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, badCredentials)
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusBadRequest, badCredentials)
		return
	}

	token, err := s.signer.Issue(user.ID, user.Username, user.IsStaff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Bool("is_staff", user.IsStaff).Msg("Token issued")

	c.JSON(http.StatusOK, TokenResponse{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		IsStaff:  user.IsStaff,
	})
}

// @Summary Register
// @Description Creates a regular (non-staff) account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/auth/register/ [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if !s.checkRegistration(c, &req) {
		return
	}

	user, ok := s.createUser(c, &req, false)
	if !ok {
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	c.JSON(http.StatusCreated, MessageResponse{Message: msgRegistered})
}

// checkRegistration applies the registration rules in order: all fields
// present, passwords match, email well formed, username and email unused.
func (s *Server) checkRegistration(c *gin.Context, req *RegisterRequest) bool {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := s.validator.Struct(req); err != nil {
		if hasRequiredError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": msgAllRequired})
		} else {
			c.JSON(http.StatusBadRequest, fieldErrors(err))
		}
		return false
	}

	if req.Password != req.Password2 {
		c.JSON(http.StatusBadRequest, gin.H{"password": []string{msgPasswordMismatch}})
		return false
	}

	if !s.validEmail(req.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"email": []string{msgEmailInvalid}})
		return false
	}

	for _, check := range []struct {
		field, value, message string
	}{
		{"username", req.Username, msgUsernameTaken},
		{"email", req.Email, msgEmailTaken},
	} {
		var count int64
		if err := s.db.Model(&models.User{}).Where(check.field+" = ?", check.value).Count(&count).Error; err != nil {
			s.logger.Error().Err(err).Msg("Failed to check for existing user")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return false
		}
		if count > 0 {
			c.JSON(http.StatusBadRequest, gin.H{check.field: []string{check.message}})
			return false
		}
	}

	return true
}

func (s *Server) createUser(c *gin.Context, req *RegisterRequest, isStaff bool) (*models.User, bool) {
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create user"})
		return nil, false
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		IsStaff:      isStaff,
	}
	if err := s.db.Create(user).Error; err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			c.JSON(http.StatusBadRequest, gin.H{"username": []string{msgUsernameTaken}})
			return nil, false
		}
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create user"})
		return nil, false
	}
	return user, true
}

func (s *Server) validEmail(email string) bool {
	return s.validator.Var(email, "required,email") == nil
}

// EmailValidationResponse reports whether an address is well formed
type EmailValidationResponse struct {
	Email   string `json:"email"`
	IsValid bool   `json:"is_valid"`
	Message string `json:"message"`
}

// @Summary Validate email
// @Description Checks the format of an email address
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} EmailValidationResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/validate-email/ [post]
func (s *Server) validateEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request must be JSON"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email field is required"})
		return
	}

	resp := EmailValidationResponse{Email: email, Message: msgEmailInvalid}
	if s.validEmail(email) {
		resp.IsValid = true
		resp.Message = msgEmailValid
	}
	c.JSON(http.StatusOK, resp)
}
