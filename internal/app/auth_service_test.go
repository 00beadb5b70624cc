package app

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ragapi/internal/pkg/jwtutil"
)

const testSecret = "test-secret"

func newTestAuthService(store *stubUserStore) *AuthService {
	return NewAuthService(store, testSecret, time.Hour)
}

func TestSignupAndLogin(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)

	result, err := svc.Signup(SignupInput{Email: "Alice@Example.com", Username: "alice", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("email must be lowercased, got %q", result.User.Email)
	}
	if result.User.PasswordHash == "secret-pass" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(result.User.PasswordHash), []byte("secret-pass")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	claims, err := jwtutil.ParseToken(testSecret, result.Token)
	if err != nil {
		t.Fatalf("signup token invalid: %v", err)
	}
	if claims.UserID != result.User.ID {
		t.Fatalf("token user id %d != %d", claims.UserID, result.User.ID)
	}

	login, err := svc.Login(LoginInput{Email: "alice@example.com", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Fatalf("login returned wrong user: %d", login.User.ID)
	}
}

func TestSignupDuplicates(t *testing.T) {
	svc := newTestAuthService(newStubUserStore())

	if _, err := svc.Signup(SignupInput{Email: "a@b.com", Username: "alice", Password: "secret-pass"}); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := svc.Signup(SignupInput{Email: "a@b.com", Username: "other", Password: "secret-pass"}); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if _, err := svc.Signup(SignupInput{Email: "c@d.com", Username: "alice", Password: "secret-pass"}); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestAuthService(newStubUserStore())

	cases := []SignupInput{
		{Email: "", Username: "alice", Password: "secret-pass"},
		{Email: "a@b.com", Username: "ab", Password: "secret-pass"},
		{Email: "a@b.com", Username: "alice", Password: "short"},
	}
	for _, input := range cases {
		if _, err := svc.Signup(input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", input, err)
		}
	}
}

func TestLoginRejects(t *testing.T) {
	store := newStubUserStore()
	svc := newTestAuthService(store)

	if _, err := svc.Signup(SignupInput{Email: "a@b.com", Username: "alice", Password: "secret-pass"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := svc.Login(LoginInput{Email: "a@b.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for wrong password, got %v", err)
	}
	if _, err := svc.Login(LoginInput{Email: "nobody@b.com", Password: "secret-pass"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for unknown email, got %v", err)
	}

	store.users[1].IsActive = false
	if _, err := svc.Login(LoginInput{Email: "a@b.com", Password: "secret-pass"}); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for inactive user, got %v", err)
	}
}
