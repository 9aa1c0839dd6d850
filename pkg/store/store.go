package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"bedmatch/pkg/config"
	"bedmatch/pkg/models"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrExists   = errors.New("account already exists")
)

// Store is the account collection, keyed by username
type Store interface {
	// Get returns the account or ErrNotFound
	Get(ctx context.Context, username string) (*models.Account, error)
	// Create inserts a new account or returns ErrExists
	Create(ctx context.Context, account *models.Account) error
	// List returns every account of the given type ordered by username
	List(ctx context.Context, userType models.UserType) ([]*models.Account, error)
	// Update runs fn atomically. Writes made through tx are discarded if fn
	// returns an error.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx reads and writes accounts inside a Store.Update call
type Tx interface {
	Get(username string) (*models.Account, error)
	Put(account *models.Account) error
}

// Open opens the store selected by cfg.Driver
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, err
		}
		return OpenBolt(cfg.Path)
	case config.StorePebble:
		return OpenPebble(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func encode(a *models.Account) ([]byte, error) {
	if a.Username == "" {
		return nil, errors.New("account has no username")
	}
	return json.Marshal(a)
}

func decode(data []byte) (*models.Account, error) {
	var a models.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	a.Normalize()
	return &a, nil
}
