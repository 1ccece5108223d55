// Package form holds the typed HTML forms of the site and their validation.
//
// Each form is a struct filled from the request by a Parse* function.
// Validate runs the declarative `validate:"..."` rules through
// go-playground/validator and returns Errors (field → messages), or nil.
package form

import (
	"errors"
	"mime/multipart"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/companyblog/internal/picture"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves every request.
var validate = newValidator()

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// reservedUsernames would be shadowed by fixed routes at /<username>.
var reservedUsernames = map[string]bool{
	"register": true,
	"login":    true,
	"logout":   true,
	"account":  true,
	"auth":     true,
	"static":   true,
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report errors under the HTML input name, not the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// Registration happens at init with fixed names; it only fails on an
	// empty tag or nil func.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("notreserved", func(fl validator.FieldLevel) bool {
		return !reservedUsernames[strings.ToLower(fl.Field().String())]
	})
	_ = v.RegisterValidation("maxbytes72", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= 72
	})
	return v
}

// NormalizeEmail is the stored form of an email address: trimmed and
// lower-cased, so lookups and the UNIQUE constraint ignore case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegistrationForm is the sign-up form.
type RegistrationForm struct {
	Email       string `form:"email"        validate:"required,email,max=254"`
	Username    string `form:"username"     validate:"required,min=3,max=64,username,notreserved"`
	Password    string `form:"password"     validate:"required,maxbytes72"`
	PassConfirm string `form:"pass_confirm" validate:"required,eqfield=Password"`
}

// ParseRegistration reads a RegistrationForm from a submitted request.
func ParseRegistration(r *http.Request) RegistrationForm {
	return RegistrationForm{
		Email:       NormalizeEmail(r.PostFormValue("email")),
		Username:    strings.TrimSpace(r.PostFormValue("username")),
		Password:    r.PostFormValue("password"),
		PassConfirm: r.PostFormValue("pass_confirm"),
	}
}

func (f RegistrationForm) Validate() error {
	return run(f)
}

// LoginForm is the email + password sign-in form.
type LoginForm struct {
	Email    string `form:"email"    validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// ParseLogin reads a LoginForm from a submitted request.
func ParseLogin(r *http.Request) LoginForm {
	return LoginForm{
		Email:    NormalizeEmail(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
}

func (f LoginForm) Validate() error {
	return run(f)
}

// AccountForm updates the current user's username, email and, optionally,
// profile picture.
type AccountForm struct {
	Email    string `form:"email"    validate:"required,email,max=254"`
	Username string `form:"username" validate:"required,min=3,max=64,username,notreserved"`

	// Picture is nil when no file was chosen.
	Picture *multipart.FileHeader `form:"picture" validate:"-"`
}

// ParseAccount reads an AccountForm from a multipart request. The caller must
// have called r.ParseMultipartForm.
func ParseAccount(r *http.Request) AccountForm {
	f := AccountForm{
		Email:    NormalizeEmail(r.PostFormValue("email")),
		Username: strings.TrimSpace(r.PostFormValue("username")),
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["picture"]; len(files) > 0 && files[0].Filename != "" {
			f.Picture = files[0]
		}
	}
	return f
}

func (f AccountForm) Validate() error {
	errs := collect(f)
	if f.Picture != nil {
		if _, ok := picture.Extension(f.Picture.Filename); !ok {
			errs.Add("picture", MsgPictureType)
		}
	}
	return errs.Err()
}

// MsgPictureType is shown for an upload that is not jpg, jpeg or png.
const MsgPictureType = "File does not have an approved extension: jpg, jpeg, png."

func run(f any) error {
	return collect(f).Err()
}

// collect runs the struct rules and translates failures into Errors.
func collect(f any) Errors {
	errs := Errors{}

	err := validate.Struct(f)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a programming error, not user input.
		panic(err)
	}
	for _, fe := range verrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min", "max":
		if fe.Field() == "username" {
			return "Username must be between 3 and 64 characters."
		}
		return "Value is too long."
	case "username":
		return "Username may only contain letters, digits, '.', '_' and '-'."
	case "notreserved":
		return "That username is reserved."
	case "maxbytes72":
		return "Password must be 72 bytes or fewer."
	case "eqfield":
		return "Passwords must match!"
	}
	return "Invalid value."
}
