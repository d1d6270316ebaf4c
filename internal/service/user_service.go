package service

import (
	"context"
	"errors"
	"strings"

	"yatube/internal/models"
	"yatube/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// errBadCredentials is returned for unknown users and wrong passwords alike.
var errBadCredentials = &models.AppError{
	Code:    models.CodeValidation,
	Message: "Please enter a correct username and password. Note that both fields may be case-sensitive.",
}

type UserService struct {
	userRepo repository.UserRepository
}

type CreateUserInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Authenticate checks a login form against the stored bcrypt hash.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	form := LoginForm{Username: strings.TrimSpace(username), Password: password}
	if err := validateForm(form); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByUsername(ctx, form.Username)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(form.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errBadCredentials
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

// CreateUser hashes the password and stores the user. Used by the seeder and tests.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	form := LoginForm{Username: strings.TrimSpace(in.Username), Password: in.Password}
	if err := validateForm(form); err != nil {
		return nil, err
	}
	hash, err := HashPassword(form.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:  form.Username,
		Password:  hash,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// HashPassword returns the bcrypt hash stored in users.password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}
