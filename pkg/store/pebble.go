package store

import (
	"context"
	"errors"
	"sync"

	"bedmatch/pkg/models"

	"github.com/cockroachdb/pebble"
)

const accountPrefix = "account/"

// PebbleStore keeps accounts under account/<username> keys. Pebble has no
// read-write transactions, so Update holds mu and commits one batch.
type PebbleStore struct {
	db *pebble.DB
	mu sync.Mutex
}

// OpenPebble opens (or creates) the pebble directory at dir
func OpenPebble(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func accountKey(username string) []byte {
	return []byte(accountPrefix + username)
}

func (s *PebbleStore) get(username string) (*models.Account, error) {
	val, closer, err := s.db.Get(accountKey(username))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return decode(val)
}

func (s *PebbleStore) Get(ctx context.Context, username string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(username)
}

func (s *PebbleStore) Create(ctx context.Context, account *models.Account) error {
	return s.Update(ctx, func(tx Tx) error {
		if _, err := tx.Get(account.Username); err == nil {
			return ErrExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.Put(account)
	})
}

func (s *PebbleStore) List(ctx context.Context, userType models.UserType) ([]*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(accountPrefix),
		UpperBound: []byte("account0"), // '0' follows '/'
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	accounts := make([]*models.Account, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		a, err := decode(iter.Value())
		if err != nil {
			return nil, err
		}
		if a.UserType == userType {
			accounts = append(accounts, a)
		}
	}
	return accounts, iter.Error()
}

func (s *PebbleStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &pebbleTx{store: s, staged: make(map[string][]byte)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.staged) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	for username, data := range tx.staged {
		if err := batch.Set(accountKey(username), data, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

type pebbleTx struct {
	store  *PebbleStore
	staged map[string][]byte
}

func (t *pebbleTx) Get(username string) (*models.Account, error) {
	if data, ok := t.staged[username]; ok {
		return decode(data)
	}
	return t.store.get(username)
}

func (t *pebbleTx) Put(account *models.Account) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	t.staged[account.Username] = data
	return nil
}
