package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"peer-review-api/middleware"
	"peer-review-api/models"
	"peer-review-api/services"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
	Message   string      `json:"message"`
}

type AuthController struct {
	users       *services.UserService
	secret      []byte
	expireHours int
}

func NewAuthController(users *services.UserService, secret string, expireHours int) *AuthController {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &AuthController{users: users, secret: []byte(secret), expireHours: expireHours}
}

// Login handles user authentication
func (h *AuthController) Login(c *gin.Context) {
	var req LoginRequest

	// Bind request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	// Generate JWT token
	token, expiresAt, err := h.generateToken(*user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      *user,
		Message:   "Login successful",
	})
}

// GetProfile returns current user profile
func (h *AuthController) GetProfile(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthController) generateToken(user models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(time.Duration(h.expireHours) * time.Hour)

	claims := middleware.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.secret)
	return signed, expiresAt, err
}
