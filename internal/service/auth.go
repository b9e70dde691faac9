package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// MaxEmailLength bounds the email column; longer values are rejected
// before they reach the store.
const MaxEmailLength = 254

// MinPasswordLength is the floor for password auth. Bcrypt caps input at
// 72 bytes, which PasswordService enforces separately.
const MinPasswordLength = 8

// AuthService orchestrates sign-in for both identity paths: GitHub OAuth
// and email/password. It sits between the HTTP handlers and the
// repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// On a brand-new account AuthService also provisions the starter data:
// it ensures the user has a default collection and runs the one-time
// starter card import. Both are best effort; a failure there never blocks
// the sign-in itself.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	collections *CollectionService
	seeds       *SeedService
	logger      *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	collections *CollectionService,
	seeds *SeedService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		passwords:   passwords,
		collections: collections,
		seeds:       seeds,
		logger:      logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// After the handler exchanges the GitHub code for a profile, this method
// upserts the user (GitHub IDs are stable and unique, so first login
// inserts and later logins refresh the profile fields), provisions
// starter data when the account is new, and issues a JWT.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}

	created, err := s.users.UpsertGitHub(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
		slog.Bool("created", created),
	)

	if created {
		s.provisionNewUser(ctx, user.ID)
	}

	return s.issue(user)
}

// RegisterWithPassword creates an email/password account. The email must
// not already be in use; the repository maps that collision to a
// validation error on the email field.
func (s *AuthService) RegisterWithPassword(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		Login:        strings.TrimSpace(name),
		PasswordHash: hash,
	}
	if user.Login == "" {
		// Fall back to the mailbox part so the UI always has a name to show.
		user.Login, _, _ = strings.Cut(email, "@")
	}

	if err := s.users.CreateWithPassword(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	s.provisionNewUser(ctx, user.ID)

	return s.issue(user)
}

// LoginWithPassword authenticates an email/password account.
//
// An unknown email and a wrong password both return the same unauthorized
// error so callers cannot probe which addresses have accounts.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: fetching user by email: %w", err)
	}

	// GitHub-only accounts have no password hash; they must sign in
	// through OAuth.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	s.logger.Info("user authenticated via password", slog.String("userID", user.ID))

	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID. Used by the
// /api/me handler after the middleware validates the JWT.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
// Thin delegation so callers only need the service package.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// provisionNewUser gives a freshly created account its default collection
// and starter cards. Errors are logged, not returned: a half-provisioned
// account is recoverable on the next request, a failed sign-in is not.
func (s *AuthService) provisionNewUser(ctx context.Context, userID string) {
	if _, err := s.collections.EnsureDefault(ctx, userID); err != nil {
		s.logger.Error("provisioning default collection failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if s.seeds == nil {
		return
	}
	if _, err := s.seeds.Import(ctx, userID); err != nil {
		s.logger.Error("starter import failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
}

func validateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return apperror.ValidationFailed("email", "email is too long")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return apperror.ValidationFailed("email", "email is not valid")
	}
	return nil
}
