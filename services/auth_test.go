package services

import (
	"context"
	"errors"
	"testing"

	"rfp-intake-platform/internal/auth"
	"rfp-intake-platform/internal/config"
	"rfp-intake-platform/models"
	"rfp-intake-platform/utils"
)

type fakeUserStore struct {
	users   map[string]*models.User
	finds   int
	creates int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.finds++
	return f.users[email], nil
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.creates++
	f.users[user.Email] = user
	return nil
}

type fakeTokenIssuer struct {
	issues int
	err    error
}

func (f *fakeTokenIssuer) Issue(userID, email string) (*auth.TokenPair, error) {
	f.issues++
	if f.err != nil {
		return nil, f.err
	}
	return &auth.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func authTestConfig() *config.Config {
	return &config.Config{BcryptCost: 4}
}

func TestSignInValidationShortCircuits(t *testing.T) {
	cases := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"bad email", "not-an-email", "secret123", "email"},
		{"empty email", "", "secret123", "email"},
		{"email with spaces", "a b@example.com", "secret123", "email"},
		{"short password", "user@example.com", "12345", "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeUserStore()
			issuer := &fakeTokenIssuer{}
			svc := NewAuthService(authTestConfig(), store, issuer)

			_, _, err := svc.SignIn(context.Background(), tc.email, tc.password)

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if valErr.Field != tc.field {
				t.Fatalf("field = %q, want %q", valErr.Field, tc.field)
			}
			if store.finds != 0 || issuer.issues != 0 {
				t.Fatalf("finds=%d issues=%d, want 0/0", store.finds, issuer.issues)
			}
		})
	}
}

func TestSignInWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	hash, _ := utils.HashPassword("correct-password", 4)
	store.users["user@example.com"] = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hash}
	issuer := &fakeTokenIssuer{}
	svc := NewAuthService(authTestConfig(), store, issuer)

	_, _, err := svc.SignIn(context.Background(), "user@example.com", "wrong-password")

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
	if issuer.issues != 0 {
		t.Fatalf("issues = %d, want 0", issuer.issues)
	}
}

func TestSignInSuccess(t *testing.T) {
	store := newFakeUserStore()
	hash, _ := utils.HashPassword("secret123", 4)
	store.users["user@example.com"] = &models.User{ID: "u1", Email: "user@example.com", PasswordHash: hash}
	issuer := &fakeTokenIssuer{}
	svc := NewAuthService(authTestConfig(), store, issuer)

	pair, user, err := svc.SignIn(context.Background(), "user@example.com", "secret123")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("empty access token")
	}
	if user.ID != "u1" {
		t.Fatalf("user id = %q", user.ID)
	}
	if issuer.issues != 1 {
		t.Fatalf("issues = %d, want 1", issuer.issues)
	}
}

func TestSignUpValidationShortCircuits(t *testing.T) {
	store := newFakeUserStore()
	svc := NewAuthService(authTestConfig(), store, &fakeTokenIssuer{})

	_, err := svc.SignUp(context.Background(), "user@example.com", "secret123", "different")

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if valErr.Field != "confirm_password" {
		t.Fatalf("field = %q", valErr.Field)
	}
	if store.finds != 0 || store.creates != 0 {
		t.Fatalf("finds=%d creates=%d, want 0/0", store.finds, store.creates)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	store.users["user@example.com"] = &models.User{ID: "u1", Email: "user@example.com"}
	svc := NewAuthService(authTestConfig(), store, &fakeTokenIssuer{})

	_, err := svc.SignUp(context.Background(), "user@example.com", "secret123", "secret123")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
	if store.creates != 0 {
		t.Fatalf("creates = %d, want 0", store.creates)
	}
}

func TestSignUpDoesNotIssueSession(t *testing.T) {
	store := newFakeUserStore()
	issuer := &fakeTokenIssuer{}
	svc := NewAuthService(authTestConfig(), store, issuer)

	user, err := svc.SignUp(context.Background(), "new@example.com", "secret123", "secret123")
	if err != nil {
		t.Fatalf("sign up failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("user id not set")
	}
	if store.creates != 1 {
		t.Fatalf("creates = %d, want 1", store.creates)
	}
	if issuer.issues != 0 {
		t.Fatalf("issues = %d, want 0; registration must not establish a session", issuer.issues)
	}

	// Password is stored hashed, never verbatim.
	saved := store.users["new@example.com"]
	if saved.PasswordHash == "secret123" || saved.PasswordHash == "" {
		t.Fatalf("password hash = %q", saved.PasswordHash)
	}
}
