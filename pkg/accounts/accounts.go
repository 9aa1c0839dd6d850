package accounts

import (
	"context"
	"encoding/base64"
	"errors"
	"math/rand"
	"strings"

	"bedmatch/pkg/apperr"
	"bedmatch/pkg/models"
	"bedmatch/pkg/store"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// MaxAvatarSize is the largest accepted avatar upload
const MaxAvatarSize = 10 << 20

// DefaultAvatars is the table new accounts draw their avatar from
var DefaultAvatars = []string{
	"https://i.ibb.co/Vtv8pJM/notion-avatar-1734263349216.png",
	"https://i.ibb.co/Dzv4Y0f/notion-avatar-1734263083425.png",
	"https://i.ibb.co/x8WVSt4/notion-avatar-1734263470907.png",
	"https://i.ibb.co/1K77SBC/notion-avatar-1734263518113.png",
}

var avatarTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) bool
}

// Service implements account registration, login and profile updates
type Service struct {
	store   store.Store
	hasher  PasswordHasher
	avatars []string
	log     *zap.Logger
}

// NewService creates an account service. avatars must not be empty.
func NewService(s store.Store, hasher PasswordHasher, avatars []string, log *zap.Logger) *Service {
	return &Service{store: s, hasher: hasher, avatars: avatars, log: log}
}

// Register validates req and stores a new account
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		s.log.Error("hash password", zap.Error(err))
		return nil, apperr.Internal("Something went wrong", err)
	}

	account := &models.Account{
		UserType: req.UserType,
		Name:     req.Name,
		Username: req.Username,
		Password: hash,
		Avatar:   s.avatars[rand.Intn(len(s.avatars))],
	}
	if req.UserType == models.Patient {
		account.Age = req.Age.Value
	} else {
		account.TotalBeds = req.TotalBeds.Value
		account.EmptyBeds = req.EmptyBeds.Value
	}
	account.Normalize()

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, apperr.Validation("User already exists")
		}
		s.log.Error("create account", zap.String("username", req.Username), zap.Error(err))
		return nil, apperr.Internal("Something went wrong", err)
	}

	s.log.Info("account registered",
		zap.String("username", account.Username),
		zap.String("user_type", string(account.UserType)))
	return account.Public(), nil
}

// Authenticate checks credentials and returns the account
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, apperr.Validation("All fields are required")
	}
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	account, err := s.store.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthorized("Username not found.")
	}
	if err != nil {
		s.log.Error("load account", zap.String("username", username), zap.Error(err))
		return nil, apperr.Internal("Something went wrong", err)
	}
	if !s.hasher.ComparePassword(account.Password, password) {
		return nil, apperr.Unauthorized("Wrong password!")
	}
	return account.Public(), nil
}

// Lookup returns the account for a logged-in username
func (s *Service) Lookup(ctx context.Context, username string) (*models.Account, error) {
	account, err := s.store.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		s.log.Error("load account", zap.String("username", username), zap.Error(err))
		return nil, apperr.Internal("Something went wrong", err)
	}
	return account.Public(), nil
}

// CheckUsername returns nil if no account uses username, or a conflict
// error if one does
func (s *Service) CheckUsername(ctx context.Context, username string) error {
	if username == "" {
		return apperr.Validation("Username is required")
	}
	_, err := s.store.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.log.Error("check username", zap.String("username", username), zap.Error(err))
		return apperr.Internal("Error checking username", err)
	}
	return apperr.Conflict("Username is already taken")
}

// UpdateAvatar stores image inline on the account as a data URI. The type is
// sniffed from the bytes rather than trusted from the upload.
func (s *Service) UpdateAvatar(ctx context.Context, username string, image []byte) (*models.Account, error) {
	if len(image) == 0 {
		return nil, apperr.Validation("No image file found")
	}
	if len(image) > MaxAvatarSize {
		return nil, apperr.Validation("Image must be 10MB or smaller")
	}
	mime := mimetype.Detect(image).String()
	if !avatarTypes[mime] {
		return nil, apperr.Validation("Unsupported file type")
	}
	avatar := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	var updated *models.Account
	err := s.store.Update(ctx, func(tx store.Tx) error {
		account, err := tx.Get(username)
		if err != nil {
			return err
		}
		account.Avatar = avatar
		updated = account
		return tx.Put(account)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		s.log.Error("update avatar", zap.String("username", username), zap.Error(err))
		return nil, apperr.Internal("Something went wrong", err)
	}
	return updated.Public(), nil
}
