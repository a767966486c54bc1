package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"attendance-register/internal/kvstore"
	"attendance-register/internal/model"
)

// Default bootstrap admin credentials, created by /init-admin.
const (
	DefaultAdminEmail    = "admin@school.com"
	DefaultAdminPassword = "admin123"
)

var (
	// ErrExists is returned when the email is already registered.
	ErrExists = errors.New("user already exists")
	// ErrBadCredentials is returned on a failed login.
	ErrBadCredentials = errors.New("invalid email or password")
)

// Users manages admin accounts stored under user:<email> keys.
type Users struct {
	kv  kvstore.Store
	log *slog.Logger
}

// NewUsers creates the admin account service.
func NewUsers(kv kvstore.Store, log *slog.Logger) *Users {
	return &Users{kv: kv, log: log}
}

// Create registers an admin account with a bcrypt password hash.
func (u *Users) Create(ctx context.Context, email, password, name string) (model.AdminUser, error) {
	if email == "" || password == "" {
		return model.AdminUser{}, errors.New("email and password are required")
	}
	if _, err := u.kv.Get(ctx, kvstore.UserKey(email)); err == nil {
		return model.AdminUser{}, ErrExists
	} else if !errors.Is(err, kvstore.ErrNotFound) {
		return model.AdminUser{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.AdminUser{}, fmt.Errorf("hash password: %w", err)
	}
	if name == "" {
		name = "Admin User"
	}
	user := model.AdminUser{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := u.kv.Set(ctx, kvstore.UserKey(email), user); err != nil {
		return model.AdminUser{}, fmt.Errorf("store user: %w", err)
	}
	u.log.Info("admin user created", slog.String("email", email))
	return user, nil
}

// InitDefaultAdmin creates the bootstrap admin if missing. The second
// return is true when the account already existed.
func (u *Users) InitDefaultAdmin(ctx context.Context) (model.AdminUser, bool, error) {
	user, err := u.Create(ctx, DefaultAdminEmail, DefaultAdminPassword, "Administrator")
	if errors.Is(err, ErrExists) {
		var existing model.AdminUser
		if err := kvstore.GetJSON(ctx, u.kv, kvstore.UserKey(DefaultAdminEmail), &existing); err != nil {
			return model.AdminUser{}, true, err
		}
		return existing, true, nil
	}
	return user, false, err
}

// Authenticate checks the password against the stored hash.
func (u *Users) Authenticate(ctx context.Context, email, password string) (model.AdminUser, error) {
	var user model.AdminUser
	err := kvstore.GetJSON(ctx, u.kv, kvstore.UserKey(email), &user)
	if errors.Is(err, kvstore.ErrNotFound) {
		return model.AdminUser{}, ErrBadCredentials
	}
	if err != nil {
		return model.AdminUser{}, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return model.AdminUser{}, ErrBadCredentials
	}
	return user, nil
}
