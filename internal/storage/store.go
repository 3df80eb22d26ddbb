// Package storage persists accounts in a LevelDB database. All mutations go
// through a Tx so a failed transaction leaves no trace.
package storage

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var accountPrefix = []byte("acct/")

// ErrAccountNotFound is returned for addresses with no stored account.
var ErrAccountNotFound = errors.New("account not found")

// Account is the stored state of one address.
type Account struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

type accountRecord struct {
	Lamports uint64
	Owner    [32]byte
	Data     []byte
}

// Store is a LevelDB-backed account database.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) a database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a throwaway in-memory database.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Account reads the committed state of addr.
func (s *Store) Account(addr solana.PublicKey) (*Account, error) {
	raw, err := s.db.Get(accountKey(addr), nil)
	return decodeAccount(raw, err)
}

// ProgramAccounts returns the committed accounts owned by owner, keyed by
// address.
func (s *Store) ProgramAccounts(owner solana.PublicKey) (map[solana.PublicKey]*Account, error) {
	it := s.db.NewIterator(util.BytesPrefix(accountPrefix), nil)
	defer it.Release()

	out := make(map[solana.PublicKey]*Account)
	for it.Next() {
		acct, err := decodeAccount(append([]byte(nil), it.Value()...), nil)
		if err != nil {
			return nil, err
		}
		if !acct.Owner.Equals(owner) {
			continue
		}
		out[solana.PublicKeyFromBytes(it.Key()[len(accountPrefix):])] = acct
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan accounts: %w", err)
	}
	return out, nil
}

// Begin opens a write transaction. Only one may be open at a time.
func (s *Store) Begin() (*Tx, error) {
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to open transaction: %w", err)
	}
	return &Tx{tr: tr}, nil
}

// Tx is an atomic set of account writes.
type Tx struct {
	tr *leveldb.Transaction
}

// Account reads addr as seen inside the transaction.
func (t *Tx) Account(addr solana.PublicKey) (*Account, error) {
	raw, err := t.tr.Get(accountKey(addr), nil)
	return decodeAccount(raw, err)
}

// SetAccount writes acct at addr.
func (t *Tx) SetAccount(addr solana.PublicKey, acct *Account) error {
	buf := new(bytes.Buffer)
	rec := accountRecord{Lamports: acct.Lamports, Owner: acct.Owner, Data: acct.Data}
	if err := bin.NewBorshEncoder(buf).Encode(rec); err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}
	return t.tr.Put(accountKey(addr), buf.Bytes(), nil)
}

// Commit makes all writes visible.
func (t *Tx) Commit() error {
	return t.tr.Commit()
}

// Discard drops all writes. It is a no-op after Commit.
func (t *Tx) Discard() {
	t.tr.Discard()
}

func accountKey(addr solana.PublicKey) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

func decodeAccount(raw []byte, err error) (*Account, error) {
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	var rec accountRecord
	if err := bin.NewBorshDecoder(raw).Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &Account{Lamports: rec.Lamports, Owner: rec.Owner, Data: rec.Data}, nil
}
