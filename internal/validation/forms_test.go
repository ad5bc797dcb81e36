package validation

import (
	"context"
	"strings"
	"testing"
)

// fakeUserStore answers the uniqueness queries from a fixed set of
// registered users.
type fakeUserStore struct {
	usernames map[string]bool
	emails    map[string]bool

	usernameErr error
	emailErr    error
}

func (f *fakeUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if f.usernameErr != nil {
		return false, f.usernameErr
	}
	return f.usernames[username], nil
}

func (f *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if f.emailErr != nil {
		return false, f.emailErr
	}
	return f.emails[email], nil
}

func newTestForms(store *fakeUserStore) *Forms {
	if store == nil {
		store = &fakeUserStore{}
	}
	if store.usernames == nil {
		store.usernames = map[string]bool{}
	}
	if store.emails == nil {
		store.emails = map[string]bool{}
	}
	return NewForms(store)
}

func fieldMessage(errs FieldErrors, field string) string {
	for _, fe := range errs {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// =============================================================================
// SIGNUP
// =============================================================================

func TestForms_Signup(t *testing.T) {
	store := &fakeUserStore{
		usernames: map[string]bool{"alice": true},
		emails:    map[string]bool{"alice@example.com": true},
	}
	forms := newTestForms(store)

	tests := []struct {
		name       string
		form       SignupForm
		wantFields []string
	}{
		{
			name: "valid signup",
			form: SignupForm{
				Username:  "susan",
				Email:     "susan@example.com",
				Password:  "cat",
				Password2: "cat",
			},
			wantFields: nil,
		},
		{
			name:       "all fields missing",
			form:       SignupForm{},
			wantFields: []string{"username", "email", "password", "password2"},
		},
		{
			name: "password mismatch",
			form: SignupForm{
				Username:  "susan",
				Email:     "susan@example.com",
				Password:  "cat",
				Password2: "dog",
			},
			wantFields: []string{"password2"},
		},
		{
			name: "malformed email",
			form: SignupForm{
				Username:  "susan",
				Email:     "not-an-email",
				Password:  "cat",
				Password2: "cat",
			},
			wantFields: []string{"email"},
		},
		{
			name: "taken username only flags username",
			form: SignupForm{
				Username:  "alice",
				Email:     "new@example.com",
				Password:  "cat",
				Password2: "cat",
			},
			wantFields: []string{"username"},
		},
		{
			name: "taken email only flags email",
			form: SignupForm{
				Username:  "newname",
				Email:     "alice@example.com",
				Password:  "cat",
				Password2: "cat",
			},
			wantFields: []string{"email"},
		},
		{
			name: "username too long",
			form: SignupForm{
				Username:  strings.Repeat("a", 65),
				Email:     "susan@example.com",
				Password:  "cat",
				Password2: "cat",
			},
			wantFields: []string{"username"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := forms.Signup(context.Background(), tt.form)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(errs) != len(tt.wantFields) {
				t.Fatalf("got %d field errors (%v), want %d", len(errs), errs, len(tt.wantFields))
			}
			for _, field := range tt.wantFields {
				if !errs.Has(field) {
					t.Errorf("expected a failure for field %q, got %v", field, errs)
				}
			}
		})
	}
}

func TestForms_Signup_TakenUsernameMessage(t *testing.T) {
	store := &fakeUserStore{usernames: map[string]bool{"alice": true}}
	forms := newTestForms(store)

	errs, err := forms.Signup(context.Background(), SignupForm{
		Username:  "alice",
		Email:     "fresh@example.com",
		Password:  "cat",
		Password2: "cat",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fieldMessage(errs, "username"); got != "Username is taken." {
		t.Errorf("username message = %q, want %q", got, "Username is taken.")
	}
}

func TestForms_Signup_StoreError(t *testing.T) {
	// A store failure is infrastructural, not a field error
	store := &fakeUserStore{usernameErr: context.DeadlineExceeded}
	forms := newTestForms(store)

	errs, err := forms.Signup(context.Background(), SignupForm{
		Username:  "susan",
		Email:     "susan@example.com",
		Password:  "cat",
		Password2: "cat",
	})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if errs != nil {
		t.Errorf("field errors should be nil on store failure, got %v", errs)
	}
}

func TestForms_Signup_SkipsUniquenessWhenShapeFails(t *testing.T) {
	// A blank username never reaches the store
	store := &fakeUserStore{usernameErr: context.DeadlineExceeded}
	forms := newTestForms(store)

	errs, err := forms.Signup(context.Background(), SignupForm{
		Username:  "",
		Email:     "susan@example.com",
		Password:  "cat",
		Password2: "cat",
	})
	if err != nil {
		t.Fatalf("store should not be queried for an invalid username: %v", err)
	}
	if !errs.Has("username") {
		t.Error("expected a required failure for username")
	}
}

// =============================================================================
// EDIT PROFILE
// =============================================================================

func TestForms_EditProfile(t *testing.T) {
	store := &fakeUserStore{usernames: map[string]bool{"susan": true, "john": true}}
	forms := newTestForms(store)

	tests := []struct {
		name         string
		form         EditProfileForm
		original     string
		wantUsername bool
	}{
		{
			name:         "unchanged username skips uniqueness",
			form:         EditProfileForm{Username: "susan", AboutMe: "new bio"},
			original:     "susan",
			wantUsername: false,
		},
		{
			name:         "rename to free name",
			form:         EditProfileForm{Username: "susan2"},
			original:     "susan",
			wantUsername: false,
		},
		{
			name:         "rename to taken name",
			form:         EditProfileForm{Username: "john"},
			original:     "susan",
			wantUsername: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs, err := forms.EditProfile(context.Background(), tt.form, tt.original)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := errs.Has("username"); got != tt.wantUsername {
				t.Errorf("username failure = %v, want %v (errs=%v)", got, tt.wantUsername, errs)
			}
		})
	}
}

func TestForms_EditProfile_TakenMessage(t *testing.T) {
	store := &fakeUserStore{usernames: map[string]bool{"john": true}}
	forms := newTestForms(store)

	errs, err := forms.EditProfile(context.Background(), EditProfileForm{Username: "john"}, "susan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fieldMessage(errs, "username"); got != "Please use a different username." {
		t.Errorf("username message = %q, want %q", got, "Please use a different username.")
	}
}

func TestForms_EditProfile_AboutMeLength(t *testing.T) {
	forms := newTestForms(nil)

	errs, err := forms.EditProfile(context.Background(), EditProfileForm{
		Username: "susan",
		AboutMe:  strings.Repeat("x", 140),
	}, "susan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("140-char bio should pass, got %v", errs)
	}

	errs, err = forms.EditProfile(context.Background(), EditProfileForm{
		Username: "susan",
		AboutMe:  strings.Repeat("x", 141),
	}, "susan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errs.Has("about_me") {
		t.Errorf("141-char bio should fail, got %v", errs)
	}
}

// =============================================================================
// POST
// =============================================================================

func TestForms_Post(t *testing.T) {
	forms := newTestForms(nil)

	tests := []struct {
		name     string
		body     string
		wantFail bool
	}{
		{name: "empty body", body: "", wantFail: true},
		{name: "single character", body: "x", wantFail: false},
		{name: "at limit", body: strings.Repeat("a", 140), wantFail: false},
		{name: "over limit", body: strings.Repeat("a", 141), wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := forms.Post(PostForm{Body: tt.body})
			if got := errs.Has("body"); got != tt.wantFail {
				t.Errorf("body failure = %v, want %v (errs=%v)", got, tt.wantFail, errs)
			}
		})
	}
}

// =============================================================================
// LOGIN / RESET
// =============================================================================

func TestForms_Login(t *testing.T) {
	forms := newTestForms(nil)

	if errs := forms.Login(LoginForm{Username: "susan", Password: "cat"}); len(errs) != 0 {
		t.Errorf("valid login should pass, got %v", errs)
	}

	errs := forms.Login(LoginForm{})
	if !errs.Has("username") || !errs.Has("password") {
		t.Errorf("blank login should flag both fields, got %v", errs)
	}
}

func TestForms_ResetPassword(t *testing.T) {
	forms := newTestForms(nil)

	if errs := forms.ResetPassword(ResetPasswordForm{Password: "cat", Password2: "cat"}); len(errs) != 0 {
		t.Errorf("matching passwords should pass, got %v", errs)
	}

	errs := forms.ResetPassword(ResetPasswordForm{Password: "cat", Password2: "dog"})
	if !errs.Has("password2") {
		t.Errorf("mismatched passwords should flag password2, got %v", errs)
	}
	if got := fieldMessage(errs, "password2"); got != "Passwords must match." {
		t.Errorf("password2 message = %q, want %q", got, "Passwords must match.")
	}
}
