package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/keyxmakerx/gatekeeper/internal/apperror"
	"github.com/keyxmakerx/gatekeeper/internal/password"
)

// UserService defines the business logic for accounts. Handlers call these
// methods -- they never touch the repository directly. Errors returned are
// *apperror.AppError values ready for the HTTP boundary.
type UserService interface {
	// Register creates an account from an email and password.
	Register(ctx context.Context, email, plaintext string) (*User, error)
	// ValidLogin reports whether the credentials match a stored user.
	ValidLogin(ctx context.Context, email, plaintext string) bool
	// Login distinguishes an unknown email (404) from a wrong password (401).
	Login(ctx context.Context, email, plaintext string) (*User, error)

	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, input CreateInput) (*User, error)
	UpdateProfile(ctx context.Context, id string, input ProfileInput) (*User, error)
	Delete(ctx context.Context, id string) error

	// SetSessionID records (or clears, with nil) the user's session column.
	SetSessionID(ctx context.Context, id string, sessionID *string) error

	// GetResetPasswordToken issues a fresh reset token for the email.
	GetResetPasswordToken(ctx context.Context, email string) (string, error)
	// UpdatePassword consumes a reset token and stores the new password.
	UpdatePassword(ctx context.Context, resetToken, plaintext string) error
}

// userService implements UserService on top of a UserRepository.
type userService struct {
	repo UserRepository
}

// NewUserService creates a new user service with the given repository.
func NewUserService(repo UserRepository) UserService {
	return &userService{repo: repo}
}

// Register hashes the password and persists a new user. A taken email is a
// client error, not a conflict, so the form flow can answer 400.
func (s *userService) Register(ctx context.Context, email, plaintext string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.NewBadRequest("email required")
	}
	if plaintext == "" {
		return nil, apperror.NewBadRequest("password required")
	}

	// Check before hashing so duplicates don't pay the bcrypt cost.
	_, err := s.repo.Find(ctx, Predicate{"email": email})
	if err == nil {
		return nil, apperror.NewBadRequest("email already registered")
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}

	return s.create(ctx, CreateInput{Email: email, Password: plaintext})
}

// ValidLogin never errors: a missing user, a store fault and a wrong
// password all read as false.
func (s *userService) ValidLogin(ctx context.Context, email, plaintext string) bool {
	if email == "" || plaintext == "" {
		return false
	}
	user, err := s.repo.Find(ctx, Predicate{"email": email})
	if err != nil {
		return false
	}
	return user.IsValidPassword(plaintext)
}

func (s *userService) Login(ctx context.Context, email, plaintext string) (*User, error) {
	user, err := s.repo.Find(ctx, Predicate{"email": email})
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewNotFound("no user found for this email")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	if !user.IsValidPassword(plaintext) {
		return nil, apperror.NewUnauthorized("wrong password")
	}
	return user, nil
}

func (s *userService) Get(ctx context.Context, id string) (*User, error) {
	return s.findOne(ctx, Predicate{"id": id})
}

func (s *userService) List(ctx context.Context) ([]User, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if list == nil {
		list = []User{}
	}
	return list, nil
}

func (s *userService) Count(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, apperror.NewInternal(err)
	}
	return n, nil
}

// Create is the API variant of Register: it also takes optional names.
func (s *userService) Create(ctx context.Context, input CreateInput) (*User, error) {
	input.Email = normalizeEmail(input.Email)
	if input.Email == "" {
		return nil, apperror.NewBadRequest("email missing")
	}
	if input.Password == "" {
		return nil, apperror.NewBadRequest("password missing")
	}
	return s.create(ctx, input)
}

func (s *userService) create(ctx context.Context, input CreateInput) (*User, error) {
	hash, err := password.Hash(input.Password)
	if errors.Is(err, password.ErrTooLong) {
		return nil, apperror.NewBadRequest("password too long")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:             uuid.NewString(),
		Email:          input.Email,
		HashedPassword: hash,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperror.NewBadRequest("email already registered")
		}
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id string, input ProfileInput) (*User, error) {
	fields := Fields{}
	if input.FirstName != nil {
		fields["first_name"] = *input.FirstName
	}
	if input.LastName != nil {
		fields["last_name"] = *input.LastName
	}
	if err := s.update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *userService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperror.NewInternal(err)
	}
	if !ok {
		return apperror.NewNotFound("Not found")
	}
	slog.Info("user deleted", slog.String("user_id", id))
	return nil
}

func (s *userService) SetSessionID(ctx context.Context, id string, sessionID *string) error {
	return s.update(ctx, id, Fields{"session_id": sessionID})
}

// GetResetPasswordToken answers 403 for unknown emails so the form flow
// mirrors its other credential failures.
func (s *userService) GetResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := s.repo.Find(ctx, Predicate{"email": email})
	if errors.Is(err, ErrNotFound) {
		return "", apperror.NewForbidden("Forbidden")
	}
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	token := uuid.NewString()
	if err := s.update(ctx, user.ID, Fields{"reset_token": token}); err != nil {
		return "", err
	}
	return token, nil
}

// UpdatePassword clears the token so it cannot be replayed.
func (s *userService) UpdatePassword(ctx context.Context, resetToken, plaintext string) error {
	if resetToken == "" {
		return apperror.NewForbidden("Forbidden")
	}
	user, err := s.repo.Find(ctx, Predicate{"reset_token": resetToken})
	if errors.Is(err, ErrNotFound) {
		return &apperror.AppError{
			Code:     http.StatusForbidden,
			Type:     "forbidden",
			Message:  "Forbidden",
			Internal: ErrInvalidResetToken,
		}
	}
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("finding reset token: %w", err))
	}

	hash, err := password.Hash(plaintext)
	if errors.Is(err, password.ErrTooLong) {
		return apperror.NewBadRequest("password too long")
	}
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.update(ctx, user.ID, Fields{"hashed_password": hash, "reset_token": nil}); err != nil {
		return err
	}
	slog.Info("password updated", slog.String("user_id", user.ID))
	return nil
}

// findOne maps ErrNotFound to a 404 AppError.
func (s *userService) findOne(ctx context.Context, p Predicate) (*User, error) {
	user, err := s.repo.Find(ctx, p)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.NewNotFound("Not found")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}
	return user, nil
}

func (s *userService) update(ctx context.Context, id string, fields Fields) error {
	err := s.repo.Update(ctx, id, fields)
	if errors.Is(err, ErrNotFound) {
		return apperror.NewNotFound("Not found")
	}
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("updating user: %w", err))
	}
	return nil
}
