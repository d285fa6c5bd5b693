package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"peer-review-api/models"
	"peer-review-api/storage"
	"peer-review-api/utils"
)

type UserService struct {
	store storage.UserStore
	now   func() time.Time
}

func NewUserService(store storage.UserStore) *UserService {
	return &UserService{store: store, now: time.Now}
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, storeErr(err, "user")
	}
	if !CheckPasswordHash(password, u.PasswordHash) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.FindUser(ctx, id)
	return u, storeErr(err, "user")
}

type CreateUserInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=author reviewer editor admin"`
}

func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Name = utils.SanitizeInput(in.Name)
	in.Email = strings.ToLower(utils.SanitizeInput(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if ok, msg := utils.ValidatePassword(in.Password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}

// HashPassword hashes password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares password with hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
