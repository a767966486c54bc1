package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"attendance-register/internal/kvstore"
)

func testUsers() *Users {
	return NewUsers(kvstore.NewMemory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("admin@school.com", "admin", "test-issuer", "secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "test-issuer")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if claims.Subject != "admin@school.com" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := Parse(pair.AccessToken, "wrong-key", "test-issuer"); err == nil {
		t.Error("Parse() accepted token with wrong key")
	}
	if _, err := Parse(pair.AccessToken, "secret", "other-issuer"); err == nil {
		t.Error("Parse() accepted token with wrong issuer")
	}
}

func TestCreateAndAuthenticate(t *testing.T) {
	users := testUsers()
	ctx := context.Background()

	user, err := users.Create(ctx, "head@school.com", "s3cret", "Head")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if user.PasswordHash == "s3cret" || user.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	if _, err := users.Create(ctx, "head@school.com", "other", ""); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create() error = %v, want ErrExists", err)
	}

	if _, err := users.Authenticate(ctx, "head@school.com", "s3cret"); err != nil {
		t.Errorf("Authenticate() error: %v", err)
	}
	if _, err := users.Authenticate(ctx, "head@school.com", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("bad password error = %v, want ErrBadCredentials", err)
	}
	if _, err := users.Authenticate(ctx, "nobody@school.com", "s3cret"); !errors.Is(err, ErrBadCredentials) {
		t.Errorf("unknown user error = %v, want ErrBadCredentials", err)
	}
}

func TestCreateRequiresEmailAndPassword(t *testing.T) {
	users := testUsers()
	if _, err := users.Create(context.Background(), "", "pw", ""); err == nil {
		t.Error("Create() accepted empty email")
	}
	if _, err := users.Create(context.Background(), "a@b.com", "", ""); err == nil {
		t.Error("Create() accepted empty password")
	}
}

func TestInitDefaultAdminIdempotent(t *testing.T) {
	users := testUsers()
	ctx := context.Background()

	user, existed, err := users.InitDefaultAdmin(ctx)
	if err != nil {
		t.Fatalf("InitDefaultAdmin() error: %v", err)
	}
	if existed || user.Email != DefaultAdminEmail {
		t.Errorf("first init = (%q, existed=%v)", user.Email, existed)
	}

	_, existed, err = users.InitDefaultAdmin(ctx)
	if err != nil {
		t.Fatalf("second InitDefaultAdmin() error: %v", err)
	}
	if !existed {
		t.Error("second init did not report existing admin")
	}

	if _, err := users.Authenticate(ctx, DefaultAdminEmail, DefaultAdminPassword); err != nil {
		t.Errorf("default admin login failed: %v", err)
	}
}
