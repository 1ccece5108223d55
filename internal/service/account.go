// Package service holds the business rules of the blog.
//
// Services sit between the HTTP handlers and the repositories:
//
//	AccountHandler (HTTP) → AccountService (rules) → UserRepository (DB)
//	                                              ↘ picture.Store (files)
//	PostHandler    (HTTP) → PostService    (rules) → PostRepository (DB)
//
// WHAT SERVICES DO NOT DO:
//   - They do NOT set cookies or read requests (HTTP concerns)
//   - They do NOT know which router or template engine is used
//
// Validation problems come back as form.Errors so the handler can re-render
// the form with messages next to the inputs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/form"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/picture"
	"github.com/sakif/companyblog/internal/repository"
)

// AccountService handles registration, login, profile updates and GitHub
// sign-in.
//
// DEPENDENCIES (injected via NewAccountService):
//   - users      repository.UserRepository → read/write user records
//   - passwords  *auth.PasswordService     → bcrypt hashing
//   - pictures   picture.Store             → profile picture storage
//   - logger     *slog.Logger              → structured logging
type AccountService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	pictures  picture.Store
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	pictures picture.Store,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		passwords: passwords,
		pictures:  pictures,
		logger:    logger,
	}
}

// Register creates an account from a submitted registration form.
//
// Emails are stored lower-cased. Email and username must both be unused. The check runs before the insert
// so both problems are reported at once; the UNIQUE constraints still catch
// a concurrent registration that slips in between.
func (s *AccountService) Register(ctx context.Context, f form.RegistrationForm) (*model.User, error) {
	f.Email = form.NormalizeEmail(f.Email)
	if err := f.Validate(); err != nil {
		return nil, err
	}

	errs := form.Errors{}
	if err := s.checkTaken(ctx, "", f.Email, f.Username, errs); err != nil {
		return nil, fmt.Errorf("service/account: registering %q: %w", f.Username, err)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(f.Password)
	if err != nil {
		return nil, fmt.Errorf("service/account: registering %q: %w", f.Username, err)
	}

	user := &model.User{
		Username:     f.Username,
		Email:        f.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if ferrs, ok := form.FromConflict(err); ok {
			return nil, ferrs
		}
		return nil, fmt.Errorf("service/account: registering %q: %w", f.Username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Authenticate checks an email + password pair.
//
// ORDER MATTERS:
// The user is looked up first and the password only checked for an existing
// account. An unknown email still pays for one bcrypt comparison (against a
// dummy hash) and both failures return the same apperror.InvalidCredentials,
// so neither the message nor the response time reveals which emails exist.
func (s *AccountService) Authenticate(ctx context.Context, f form.LoginForm) (*model.User, error) {
	f.Email = form.NormalizeEmail(f.Email)
	if err := f.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, f.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(f.Password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/account: looking up login email: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, f.Password); err != nil {
		s.logger.Info("login rejected", slog.String("userID", user.ID))
		return nil, apperror.InvalidCredentials()
	}

	return user, nil
}

// UpdateAccount applies the account form to user, the session's own record.
//
// Uniqueness is checked against other users only: keeping your own email or
// username is not a conflict. When a picture was uploaded it is stored under
// the user's ID and becomes the profile image. On success user is
// updated in place; on failure it is left untouched.
func (s *AccountService) UpdateAccount(ctx context.Context, user *model.User, f form.AccountForm) error {
	f.Email = form.NormalizeEmail(f.Email)
	if err := f.Validate(); err != nil {
		return err
	}

	errs := form.Errors{}
	if err := s.checkTaken(ctx, user.ID, f.Email, f.Username, errs); err != nil {
		return fmt.Errorf("service/account: updating user %s: %w", user.ID, err)
	}
	if err := errs.Err(); err != nil {
		return err
	}

	updated := *user
	updated.Username = f.Username
	updated.Email = f.Email

	if f.Picture != nil {
		name, err := s.savePicture(ctx, user.ID, f)
		if err != nil {
			var appErr *apperror.AppError
			if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
				return form.Errors{"picture": {appErr.Message}}
			}
			return fmt.Errorf("service/account: updating user %s: %w", user.ID, err)
		}
		updated.ProfileImage = name
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		if ferrs, ok := form.FromConflict(err); ok {
			return ferrs
		}
		return fmt.Errorf("service/account: updating user %s: %w", user.ID, err)
	}

	*user = updated
	s.logger.Info("account updated",
		slog.String("userID", user.ID),
		slog.Bool("picture", f.Picture != nil),
	)
	return nil
}

func (s *AccountService) savePicture(ctx context.Context, userID string, f form.AccountForm) (string, error) {
	file, err := f.Picture.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer file.Close()

	return s.pictures.Save(ctx, userID, f.Picture.Filename, file)
}

// checkTaken adds a form error for an email or username that belongs to a
// user other than selfID. selfID is "" during registration.
func (s *AccountService) checkTaken(ctx context.Context, selfID, email, username string, errs form.Errors) error {
	owner, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != selfID:
		errs.Add("email", form.MsgEmailTaken)
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return err
	}

	owner, err = s.users.GetByUsername(ctx, username)
	switch {
	case err == nil && owner.ID != selfID:
		errs.Add("username", form.MsgUsernameTaken)
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return err
	}
	return nil
}

// LoginWithGitHub resolves a GitHub profile to a local account.
//
// RESOLUTION ORDER:
//  1. An account already linked to this GitHub ID.
//  2. A new password-less account named after the GitHub login.
//
// An existing account with the same email is never linked here: emails are
// not verified at registration, so whoever registered the address first
// would receive the GitHub user's session. The owner links GitHub from a
// signed-in session instead (LinkGitHub).
//
// Step 2 fails with a user-facing AppError when the email belongs to an
// account, the login is not a usable username here (taken, reserved, too
// short) or GitHub shares no email.
func (s *AccountService) LoginWithGitHub(ctx context.Context, gh *auth.GitHubUser) (*model.User, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/account: GitHub user must not be nil")
	}

	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: looking up GitHub user %d: %w", gh.ID, err)
	}

	email := form.NormalizeEmail(gh.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Your GitHub account has no verified email address. Please register with email and password.")
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info("GitHub sign-in refused: email belongs to an account", slog.Int64("githubID", gh.ID))
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: MsgGitHubEmailExists,
			Field:   "email",
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: looking up GitHub email: %w", err)
	}

	return s.createFromGitHub(ctx, gh.ID, gh.Login, email)
}

// MsgGitHubEmailExists is shown when a GitHub sign-in matches the email of
// an account that is not linked to that GitHub user.
const MsgGitHubEmailExists = "An account with this email already exists. Log in with your password, then connect GitHub from your account page."

// LinkGitHub connects a GitHub profile to user, the signed-in account.
// Relinking the same GitHub user is a no-op; a GitHub user linked to
// someone else is a conflict.
func (s *AccountService) LinkGitHub(ctx context.Context, user *model.User, gh *auth.GitHubUser) error {
	if user == nil || gh == nil {
		return fmt.Errorf("service/account: user and GitHub user must not be nil")
	}

	owner, err := s.users.GetByGitHubID(ctx, gh.ID)
	switch {
	case err == nil && owner.ID == user.ID:
		return nil
	case err == nil:
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "That GitHub account is already connected to another user.",
			Field:   "github",
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("service/account: looking up GitHub user %d: %w", gh.ID, err)
	}

	updated := *user
	githubID := gh.ID
	updated.GitHubID = &githubID
	if err := s.users.Update(ctx, &updated); err != nil {
		return fmt.Errorf("service/account: linking GitHub %d to user %s: %w", gh.ID, user.ID, err)
	}

	*user = updated
	s.logger.Info("GitHub account linked",
		slog.String("userID", user.ID),
		slog.Int64("githubID", gh.ID),
	)
	return nil
}

func (s *AccountService) createFromGitHub(ctx context.Context, githubID int64, login, email string) (*model.User, error) {
	unusable := &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: fmt.Sprintf("The username %q is not available. Please register with email and password.", login),
		Field:   "username",
	}

	if err := (form.AccountForm{Username: login, Email: email}).Validate(); err != nil {
		return nil, unusable
	}

	user := &model.User{
		Username: login,
		Email:    email,
		GitHubID: &githubID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, unusable
		}
		return nil, fmt.Errorf("service/account: creating GitHub user %d: %w", githubID, err)
	}

	s.logger.Info("user registered via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Int64("githubID", githubID),
	)
	return user, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AccountService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/account: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/account: fetching user %s: %w", id, err)
	}

	return user, nil
}
