package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubTokenIssuer struct {
	subjects []string
	err      error
}

func (s *stubTokenIssuer) Issue(subject, username, role string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.subjects = append(s.subjects, subject)
	return "token-" + username + "-" + role, fixedNow.Add(24 * time.Hour), nil
}

// reversingHasher stands in for bcrypt so tests stay fast.
type reversingHasher struct{}

func (reversingHasher) Hash(password string) (string, error) {
	runes := []rune(password)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return "rev:" + string(runes), nil
}

func (h reversingHasher) Compare(hash, password string) error {
	want, _ := h.Hash(password)
	if hash != want {
		return errors.New("mismatch")
	}
	return nil
}

func newAuthFixture(t *testing.T) (*memoryStore, AuthService, *stubTokenIssuer, *[]string) {
	t.Helper()
	store := newMemoryStore()
	tokens := &stubTokenIssuer{}
	var logged []string
	svc, err := NewAuthService(AuthServiceDeps{
		Users:       memoryUsers{store},
		Tokens:      tokens,
		Passwords:   reversingHasher{},
		Clock:       func() time.Time { return fixedNow },
		IDGenerator: sequentialIDs("01U"),
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return store, svc, tokens, &logged
}

func TestNewAuthServiceRequiresDependencies(t *testing.T) {
	if _, err := NewAuthService(AuthServiceDeps{Users: memoryUsers{newMemoryStore()}}); err == nil {
		t.Fatal("expected error without token issuer")
	}
}

func TestAuthServiceRegister(t *testing.T) {
	store, svc, tokens, logged := newAuthFixture(t)

	result, err := svc.Register(context.Background(), RegisterCommand{Username: " alice ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Username != "alice" || result.Role != "USER" || result.Token != "token-alice-USER" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.ExpiresAt.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", result.ExpiresAt)
	}
	if len(tokens.subjects) != 1 || tokens.subjects[0] != "usr_01U001" {
		t.Fatalf("expected token for usr_01U001, got %v", tokens.subjects)
	}

	stored := store.users["alice"]
	if stored.PasswordHash == "secret1" || stored.PasswordHash == "" {
		t.Fatalf("password must be stored hashed, got %q", stored.PasswordHash)
	}
	if !stored.CreatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected created at %s", stored.CreatedAt)
	}
	if len(*logged) != 1 || (*logged)[0] != "auth.registered" {
		t.Fatalf("expected registration log, got %v", *logged)
	}
}

func TestAuthServiceRegisterDuplicate(t *testing.T) {
	_, svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterCommand{Username: "bob", Password: "hunter22"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, RegisterCommand{Username: "bob", Password: "another1"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	_, svc, _, _ := newAuthFixture(t)

	cases := map[string]RegisterCommand{
		"blank username":    {Username: " ", Password: "secret1"},
		"short username":    {Username: "ab", Password: "secret1"},
		"long username":     {Username: strings.Repeat("u", 51), Password: "secret1"},
		"spaced username":   {Username: "al ice", Password: "secret1"},
		"short password":    {Username: "alice", Password: "12345"},
		"oversize password": {Username: "alice", Password: strings.Repeat("p", 73)},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), cmd); !errors.Is(err, ErrAuthInvalidInput) {
				t.Fatalf("expected ErrAuthInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthServiceLogin(t *testing.T) {
	_, svc, _, logged := newAuthFixture(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterCommand{Username: "carol", Password: "p4ssword"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := svc.Login(ctx, LoginCommand{Username: "carol", Password: "p4ssword"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" || result.Username != "carol" {
		t.Fatalf("unexpected login result %+v", result)
	}

	if _, err := svc.Login(ctx, LoginCommand{Username: "carol", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginCommand{Username: "mallory", Password: "p4ssword"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginCommand{Username: "carol"}); !errors.Is(err, ErrAuthInvalidInput) {
		t.Fatalf("expected ErrAuthInvalidInput, got %v", err)
	}

	failures := 0
	for _, event := range *logged {
		if event == "auth.login.failed" {
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("expected two failed login logs, got %v", *logged)
	}
}

func TestAuthServiceTokenFailure(t *testing.T) {
	_, svc, tokens, _ := newAuthFixture(t)
	tokens.err = errBoom

	if _, err := svc.Register(context.Background(), RegisterCommand{Username: "dave", Password: "secret1"}); !errors.Is(err, errBoom) {
		t.Fatalf("expected token error to surface, got %v", err)
	}
}
