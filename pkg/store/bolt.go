package store

import (
	"context"
	"errors"
	"time"

	"bedmatch/pkg/models"

	"go.etcd.io/bbolt"
)

var accountsBucket = []byte("accounts")

// BoltStore keeps accounts as JSON documents in a single bbolt bucket
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the bbolt file at path
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(accountsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(ctx context.Context, username string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var account *models.Account
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		account, err = (&boltTx{bucket: tx.Bucket(accountsBucket)}).Get(username)
		return err
	})
	return account, err
}

func (s *BoltStore) Create(ctx context.Context, account *models.Account) error {
	return s.Update(ctx, func(tx Tx) error {
		if _, err := tx.Get(account.Username); err == nil {
			return ErrExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		return tx.Put(account)
	})
}

func (s *BoltStore) List(ctx context.Context, userType models.UserType) ([]*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	accounts := make([]*models.Account, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucket).ForEach(func(_, v []byte) error {
			a, err := decode(v)
			if err != nil {
				return err
			}
			if a.UserType == userType {
				accounts = append(accounts, a)
			}
			return nil
		})
	})
	return accounts, err
}

func (s *BoltStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{bucket: tx.Bucket(accountsBucket)})
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltTx struct {
	bucket *bbolt.Bucket
}

func (t *boltTx) Get(username string) (*models.Account, error) {
	data := t.bucket.Get([]byte(username))
	if data == nil {
		return nil, ErrNotFound
	}
	return decode(data)
}

func (t *boltTx) Put(account *models.Account) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	return t.bucket.Put([]byte(account.Username), data)
}
