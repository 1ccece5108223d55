package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/form"
	"github.com/sakif/companyblog/internal/model"
)

// newTestAccountService wires an AccountService to fakes and a cheap bcrypt.
func newTestAccountService(t *testing.T) (*AccountService, *mockUserRepo, *mockPictures) {
	t.Helper()
	repo := newMockUserRepo()
	pics := &mockPictures{}
	svc := NewAccountService(repo, auth.NewPasswordServiceWithCost(4), pics, testLogger())
	return svc, repo, pics
}

func registration(username, email string) form.RegistrationForm {
	return form.RegistrationForm{
		Email:       email,
		Username:    username,
		Password:    "woofwoof",
		PassConfirm: "woofwoof",
	}
}

// mustRegister registers username with email <username>@example.com.
func mustRegister(t *testing.T, svc *AccountService, username string) *model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), registration(username, username+"@example.com"))
	if err != nil {
		t.Fatalf("Register(%s) error = %v", username, err)
	}
	return u
}

// formErrors asserts err is form.Errors.
func formErrors(t *testing.T, err error) form.Errors {
	t.Helper()
	var errs form.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("error = %v (%T), want form.Errors", err, err)
	}
	return errs
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_CreatesUserWithHashedPassword(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)

	user := mustRegister(t, svc, "rex")

	stored := repo.users[user.ID]
	if stored == nil {
		t.Fatal("Register() did not persist the user")
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "woofwoof" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", stored.PasswordHash)
	}
	if stored.ProfileImage != model.DefaultProfileImage {
		t.Errorf("ProfileImage = %q, want default", stored.ProfileImage)
	}
}

func TestRegister_RejectsTakenEmailAndUsername(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	mustRegister(t, svc, "rex")

	tests := []struct {
		name   string
		form   form.RegistrationForm
		fields []string
	}{
		{"email taken", registration("fido", "rex@example.com"), []string{"email"}},
		{"username taken", registration("rex", "fido@example.com"), []string{"username"}},
		{"both taken", registration("rex", "rex@example.com"), []string{"email", "username"}},
		{"email taken in other case", registration("fido", "REX@Example.com"), []string{"email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.form)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want ErrValidation", err)
			}
			errs := formErrors(t, err)
			for _, f := range tt.fields {
				if !errs.Has(f) {
					t.Errorf("missing error for %q in %v", f, errs)
				}
			}
			if n, _ := repo.Count(context.Background()); n != 1 {
				t.Errorf("user count = %d, want 1 (no mutation)", n)
			}
		})
	}
}

func TestRegister_InvalidFormDoesNotTouchRepo(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)

	f := registration("rex", "rex@example.com")
	f.PassConfirm = "nope"

	_, err := svc.Register(context.Background(), f)
	if !formErrors(t, err).Has("pass_confirm") {
		t.Errorf("want pass_confirm error, got %v", err)
	}
	if len(repo.users) != 0 {
		t.Error("invalid registration must not create a user")
	}
}

func TestRegister_RepositoryErrorIsWrapped(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	repo.err = errors.New("disk on fire")

	_, err := svc.Register(context.Background(), registration("rex", "rex@example.com"))
	if err == nil || errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Register() error = %v, want a non-validation error", err)
	}
}

// =========================================================================
// AUTHENTICATE TESTS
// =========================================================================

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestAccountService(t)
	rex := mustRegister(t, svc, "rex")

	ghOnly := &model.User{Username: "octo", Email: "octo@example.com"}
	if err := svc.users.Create(context.Background(), ghOnly); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantID   string
	}{
		{"correct", "rex@example.com", "woofwoof", rex.ID},
		{"wrong password", "rex@example.com", "meowmeow", ""},
		{"unknown email", "nobody@example.com", "woofwoof", ""},
		{"account without password", "octo@example.com", "anything", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Authenticate(context.Background(), form.LoginForm{Email: tt.email, Password: tt.password})
			if tt.wantID != "" {
				if err != nil || user.ID != tt.wantID {
					t.Fatalf("Authenticate() = %v, %v; want user %s", user, err, tt.wantID)
				}
				return
			}

			if !errors.Is(err, apperror.ErrInvalidCredentials) {
				t.Fatalf("Authenticate() error = %v, want ErrInvalidCredentials", err)
			}
			if err.Error() != "Invalid email or password." {
				t.Errorf("message = %q, must be identical for every failure", err.Error())
			}
		})
	}
}

func TestAuthenticate_IgnoresEmailCase(t *testing.T) {
	svc, _, _ := newTestAccountService(t)
	rex, err := svc.Register(context.Background(), registration("rex", "Rex@Example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if rex.Email != "rex@example.com" {
		t.Errorf("stored email = %q, want it lower-cased", rex.Email)
	}

	user, err := svc.Authenticate(context.Background(), form.LoginForm{Email: "REX@example.COM", Password: "woofwoof"})
	if err != nil || user.ID != rex.ID {
		t.Fatalf("Authenticate() = %v, %v; want user %s", user, err, rex.ID)
	}
}

func TestAuthenticate_EmptyFormIsValidationError(t *testing.T) {
	svc, _, _ := newTestAccountService(t)

	_, err := svc.Authenticate(context.Background(), form.LoginForm{})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Authenticate() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// UPDATE ACCOUNT TESTS
// =========================================================================

func TestUpdateAccount_ChangesUsernameAndEmail(t *testing.T) {
	svc, repo, pics := newTestAccountService(t)
	user := mustRegister(t, svc, "rex")

	err := svc.UpdateAccount(context.Background(), user, form.AccountForm{Username: "rexford", Email: "rexford@example.com"})
	if err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}

	if user.Username != "rexford" {
		t.Errorf("caller's user not updated: %q", user.Username)
	}
	stored := repo.users[user.ID]
	if stored.Username != "rexford" || stored.Email != "rexford@example.com" {
		t.Errorf("stored user = %+v", stored)
	}
	if stored.ProfileImage != model.DefaultProfileImage {
		t.Errorf("ProfileImage changed without an upload: %q", stored.ProfileImage)
	}
	if len(pics.saved) != 0 {
		t.Error("no picture should be saved without an upload")
	}
}

// Keeping your own username and email is not a conflict.
func TestUpdateAccount_KeepingOwnValues(t *testing.T) {
	svc, _, _ := newTestAccountService(t)
	user := mustRegister(t, svc, "rex")

	if err := svc.UpdateAccount(context.Background(), user, form.AccountForm{Username: "rex", Email: "rex@example.com"}); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}
}

func TestUpdateAccount_RejectsOtherUsersValues(t *testing.T) {
	svc, repo, _ := newTestAccountService(t)
	mustRegister(t, svc, "fido")
	user := mustRegister(t, svc, "rex")

	err := svc.UpdateAccount(context.Background(), user, form.AccountForm{Username: "fido", Email: "fido@example.com"})

	errs := formErrors(t, err)
	if errs.Get("username") != form.MsgUsernameTaken || errs.Get("email") != form.MsgEmailTaken {
		t.Errorf("errors = %v", errs)
	}
	if user.Username != "rex" {
		t.Error("caller's user must be untouched on failure")
	}
	if got := fmt.Sprint(usernames(repo.users)); got != "[fido rex]" {
		t.Errorf("stored usernames = %s", got)
	}
}

func TestUpdateAccount_WithPicture(t *testing.T) {
	svc, repo, pics := newTestAccountService(t)
	user := mustRegister(t, svc, "rex")

	f := form.AccountForm{
		Username: "rexford",
		Email:    "rex@example.com",
		Picture:  uploadedFile(t, "me.png", []byte("png bytes")),
	}
	if err := svc.UpdateAccount(context.Background(), user, f); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}

	if len(pics.saved) != 1 || pics.saved[0].userID != user.ID || string(pics.saved[0].data) != "png bytes" {
		t.Fatalf("saved pictures = %+v", pics.saved)
	}
	if got, want := repo.users[user.ID].ProfileImage, user.ID+".png"; got != want {
		t.Errorf("ProfileImage = %q, want %q", got, want)
	}
}

// Pictures follow the account, not the username: a rename keeps the file
// name, and whoever takes the old username writes somewhere else.
func TestUpdateAccount_PictureNameSurvivesRename(t *testing.T) {
	svc, repo, pics := newTestAccountService(t)
	first := mustRegister(t, svc, "alice")

	upload := func(u *model.User, username string) {
		t.Helper()
		f := form.AccountForm{Username: username, Email: u.Email, Picture: uploadedFile(t, "me.png", []byte(username))}
		if err := svc.UpdateAccount(context.Background(), u, f); err != nil {
			t.Fatalf("UpdateAccount(%s) error = %v", username, err)
		}
	}

	upload(first, "alice")
	if err := svc.UpdateAccount(context.Background(), first, form.AccountForm{Username: "carol", Email: "carol@example.com"}); err != nil {
		t.Fatalf("rename error = %v", err)
	}
	second := mustRegister(t, svc, "alice")
	upload(second, "alice")

	firstImage := repo.users[first.ID].ProfileImage
	secondImage := repo.users[second.ID].ProfileImage
	if firstImage == secondImage {
		t.Fatalf("both accounts point at %q", firstImage)
	}
	if len(pics.saved) != 2 || pics.saved[0].userID == pics.saved[1].userID {
		t.Errorf("saved pictures = %+v, want one per account", pics.saved)
	}
}

func TestUpdateAccount_InvalidPictureBecomesFieldError(t *testing.T) {
	svc, repo, pics := newTestAccountService(t)
	user := mustRegister(t, svc, "rex")
	pics.err = apperror.ValidationFailed("picture", "Uploaded file is not a valid image.")

	f := form.AccountForm{Username: "rex", Email: "rex@example.com", Picture: uploadedFile(t, "me.png", []byte("junk"))}
	err := svc.UpdateAccount(context.Background(), user, f)

	if got := formErrors(t, err).Get("picture"); got != "Uploaded file is not a valid image." {
		t.Errorf("picture error = %q", got)
	}
	if repo.users[user.ID].ProfileImage != model.DefaultProfileImage {
		t.Error("profile image must not change when the upload fails")
	}
}

func TestUpdateAccount_StoreFailureIsInternal(t *testing.T) {
	svc, _, pics := newTestAccountService(t)
	user := mustRegister(t, svc, "rex")
	pics.err = errors.New("bucket unreachable")

	f := form.AccountForm{Username: "rex", Email: "rex@example.com", Picture: uploadedFile(t, "me.png", []byte("x"))}
	err := svc.UpdateAccount(context.Background(), user, f)

	if err == nil || errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpdateAccount() error = %v, want internal error", err)
	}
}

// =========================================================================
// GITHUB SIGN-IN TESTS
// =========================================================================

func TestLoginWithGitHub(t *testing.T) {
	t.Run("creates a new account", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)

		user, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octocat", Email: "octo@example.com"})
		if err != nil {
			t.Fatalf("LoginWithGitHub() error = %v", err)
		}
		if user.Username != "octocat" || user.GitHubID == nil || *user.GitHubID != 7 {
			t.Errorf("user = %+v", user)
		}
		if user.HasPassword() {
			t.Error("GitHub-created accounts have no password")
		}
		if len(repo.users) != 1 {
			t.Errorf("users = %d, want 1", len(repo.users))
		}
	})

	t.Run("returns the linked account", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)
		first, _ := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octocat", Email: "octo@example.com"})

		again, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "renamed", Email: "new@example.com"})
		if err != nil || again.ID != first.ID {
			t.Fatalf("LoginWithGitHub() = %v, %v; want user %s", again, err, first.ID)
		}
		if len(repo.users) != 1 {
			t.Errorf("users = %d, want 1", len(repo.users))
		}
	})

	// Someone may have registered the address without owning it; signing in
	// with GitHub must not hand out their account.
	t.Run("email of a password account is not linked", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)
		mallory := mustRegister(t, svc, "mallory")
		if err := svc.UpdateAccount(context.Background(), mallory, form.AccountForm{Username: "mallory", Email: "victim@example.com"}); err != nil {
			t.Fatal(err)
		}

		user, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 9, Login: "victim", Email: "Victim@Example.com"})

		if user != nil || !errors.Is(err, apperror.ErrConflict) {
			t.Fatalf("LoginWithGitHub() = %v, %v; want ErrConflict", user, err)
		}
		if err.Error() != MsgGitHubEmailExists {
			t.Errorf("message = %q", err.Error())
		}
		if repo.users[mallory.ID].GitHubID != nil {
			t.Error("GitHub must not be linked to the existing account")
		}
		if len(repo.users) != 1 {
			t.Errorf("users = %d, want 1", len(repo.users))
		}
	})

	t.Run("email of another GitHub account is not linked", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)
		first, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octocat", Email: "octo@example.com"})
		if err != nil {
			t.Fatal(err)
		}

		_, err = svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 8, Login: "octodog", Email: "octo@example.com"})

		if !errors.Is(err, apperror.ErrConflict) {
			t.Fatalf("error = %v, want ErrConflict", err)
		}
		if gh := repo.users[first.ID].GitHubID; gh == nil || *gh != 7 {
			t.Errorf("GitHubID changed: %v", gh)
		}
	})

	t.Run("username taken", func(t *testing.T) {
		svc, _, _ := newTestAccountService(t)
		mustRegister(t, svc, "octocat")

		_, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octocat", Email: "other@example.com"})
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
	})

	t.Run("unusable login", func(t *testing.T) {
		svc, _, _ := newTestAccountService(t)

		_, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "ab", Email: "ab@example.com"})
		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
	})

	t.Run("no email", func(t *testing.T) {
		svc, _, _ := newTestAccountService(t)

		_, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 7, Login: "octocat"})
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("error = %v, want ErrValidation", err)
		}
	})
}

func TestLinkGitHub(t *testing.T) {
	t.Run("links the signed-in account", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)
		rex := mustRegister(t, svc, "rex")

		if err := svc.LinkGitHub(context.Background(), rex, &auth.GitHubUser{ID: 9, Login: "rex-gh", Email: "rex@example.com"}); err != nil {
			t.Fatalf("LinkGitHub() error = %v", err)
		}
		if gh := repo.users[rex.ID].GitHubID; gh == nil || *gh != 9 {
			t.Errorf("GitHubID not linked: %v", gh)
		}
		if rex.GitHubID == nil {
			t.Error("caller's user not updated")
		}
		if !repo.users[rex.ID].HasPassword() {
			t.Error("linking must keep the password")
		}

		user, err := svc.LoginWithGitHub(context.Background(), &auth.GitHubUser{ID: 9, Login: "rex-gh", Email: "rex@example.com"})
		if err != nil || user.ID != rex.ID {
			t.Fatalf("LoginWithGitHub() after linking = %v, %v; want user %s", user, err, rex.ID)
		}
	})

	t.Run("relinking is a no-op", func(t *testing.T) {
		svc, _, _ := newTestAccountService(t)
		rex := mustRegister(t, svc, "rex")
		gh := &auth.GitHubUser{ID: 9, Login: "rex-gh"}

		if err := svc.LinkGitHub(context.Background(), rex, gh); err != nil {
			t.Fatal(err)
		}
		if err := svc.LinkGitHub(context.Background(), rex, gh); err != nil {
			t.Errorf("second LinkGitHub() error = %v", err)
		}
	})

	t.Run("GitHub user owned by someone else", func(t *testing.T) {
		svc, repo, _ := newTestAccountService(t)
		fido := mustRegister(t, svc, "fido")
		rex := mustRegister(t, svc, "rex")
		if err := svc.LinkGitHub(context.Background(), fido, &auth.GitHubUser{ID: 9}); err != nil {
			t.Fatal(err)
		}

		err := svc.LinkGitHub(context.Background(), rex, &auth.GitHubUser{ID: 9})

		if !errors.Is(err, apperror.ErrConflict) {
			t.Errorf("error = %v, want ErrConflict", err)
		}
		if repo.users[rex.ID].GitHubID != nil || rex.GitHubID != nil {
			t.Error("rex must stay unlinked")
		}
	})
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAccountService(t)
	rex := mustRegister(t, svc, "rex")

	got, err := svc.GetUserByID(context.Background(), rex.ID)
	if err != nil || got.Username != "rex" {
		t.Errorf("GetUserByID() = %v, %v", got, err)
	}

	if _, err := svc.GetUserByID(context.Background(), ""); err == nil {
		t.Error("GetUserByID(\"\") should fail")
	}
	if _, err := svc.GetUserByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(missing) error = %v, want ErrNotFound", err)
	}
}
