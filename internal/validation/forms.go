// Package validation defines the input schemas for every user-facing form
// and their validation rules. Shape rules (required, email, length, field
// equality) are declared as struct tags; uniqueness rules query the user
// store. Failures are field-scoped and non-fatal: callers get back a list
// of (field, message) pairs to render, never a panic or a lost request.
package validation

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a single user-correctable validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors collects all failures for one form submission.
type FieldErrors []FieldError

// Has reports whether a failure was recorded for the given field.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// UserExistenceChecker is the narrow slice of the user store the
// uniqueness validators need.
type UserExistenceChecker interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// LoginForm authenticates an existing user.
type LoginForm struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// SignupForm registers a new user.
type SignupForm struct {
	Username  string `json:"username" validate:"required,max=64"`
	Email     string `json:"email" validate:"required,email,max=120"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

// EditProfileForm updates username and bio.
type EditProfileForm struct {
	Username string `json:"username" validate:"required,max=64"`
	AboutMe  string `json:"about_me" validate:"max=140"`
}

// PostForm submits a new post.
type PostForm struct {
	Body string `json:"body" validate:"required,min=1,max=140"`
}

// ResetPasswordRequestForm asks for a password reset token.
type ResetPasswordRequestForm struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordForm redeems a reset token for a new password.
type ResetPasswordForm struct {
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

// Forms validates form submissions. Safe for concurrent use.
type Forms struct {
	validate *validator.Validate
	users    UserExistenceChecker
}

// NewForms creates the form validator backed by the given user store.
func NewForms(users UserExistenceChecker) *Forms {
	v := validator.New()

	// Report failures under the json field name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Forms{validate: v, users: users}
}

// Login validates the login form.
func (f *Forms) Login(form LoginForm) FieldErrors {
	return f.shape(form)
}

// Signup validates the signup form: shape first, then username and email
// uniqueness against the user store. The returned error is infrastructural
// (store unreachable) and distinct from user-correctable field errors.
func (f *Forms) Signup(ctx context.Context, form SignupForm) (FieldErrors, error) {
	errs := f.shape(form)

	if !errs.Has("username") {
		taken, err := f.users.ExistsByUsername(ctx, form.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			errs = append(errs, FieldError{Field: "username", Message: "Username is taken."})
		}
	}

	if !errs.Has("email") {
		taken, err := f.users.ExistsByEmail(ctx, form.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			errs = append(errs, FieldError{Field: "email", Message: "Email already exists."})
		}
	}

	return errs, nil
}

// EditProfile validates a profile edit. The uniqueness check is skipped
// when the submitted username equals originalUsername, so a user editing
// only their bio is not rejected for "taking" their own name.
func (f *Forms) EditProfile(ctx context.Context, form EditProfileForm, originalUsername string) (FieldErrors, error) {
	errs := f.shape(form)

	if !errs.Has("username") && form.Username != originalUsername {
		taken, err := f.users.ExistsByUsername(ctx, form.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if taken {
			errs = append(errs, FieldError{Field: "username", Message: "Please use a different username."})
		}
	}

	return errs, nil
}

// Post validates the post submission form.
func (f *Forms) Post(form PostForm) FieldErrors {
	return f.shape(form)
}

// ResetPasswordRequest validates the reset request form.
func (f *Forms) ResetPasswordRequest(form ResetPasswordRequestForm) FieldErrors {
	return f.shape(form)
}

// ResetPassword validates the reset confirmation form.
func (f *Forms) ResetPassword(form ResetPasswordForm) FieldErrors {
	return f.shape(form)
}

// shape runs the declarative tag rules and converts validator failures
// into field-scoped messages.
func (f *Forms) shape(form interface{}) FieldErrors {
	err := f.validate.Struct(form)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		// Only reachable for a non-struct argument, which is a programming
		// error in the caller.
		return FieldErrors{{Field: "", Message: "invalid form"}}
	}

	errs := make(FieldErrors, 0, len(validationErrors))
	for _, fe := range validationErrors {
		errs = append(errs, FieldError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return errs
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "eqfield":
		return "Passwords must match."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", fe.Param())
	default:
		return "Invalid value."
	}
}
