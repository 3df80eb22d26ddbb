package storage

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxCommitAndDiscard(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	addr := solana.NewWallet().PublicKey()
	owner := solana.SystemProgramID

	_, err = s.Account(addr)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetAccount(addr, &Account{Lamports: 10, Owner: owner, Data: []byte{1, 2}}))

	inside, err := tx.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), inside.Lamports)

	_, err = s.Account(addr)
	assert.ErrorIs(t, err, ErrAccountNotFound, "uncommitted write must not be visible")
	require.NoError(t, tx.Commit())

	got, err := s.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, &Account{Lamports: 10, Owner: owner, Data: []byte{1, 2}}, got)

	tx, err = s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetAccount(addr, &Account{Lamports: 99, Owner: owner}))
	tx.Discard()

	got, err = s.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Lamports)
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	addr := solana.NewWallet().PublicKey()
	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetAccount(addr, &Account{Lamports: 1, Owner: solana.SystemProgramID}))
	require.NoError(t, tx.Commit())
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Lamports)
}

func TestProgramAccounts(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	owner := solana.NewWallet().PublicKey()
	mine, other := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	tx, err := s.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SetAccount(mine, &Account{Lamports: 1, Owner: owner, Data: []byte{7}}))
	require.NoError(t, tx.SetAccount(other, &Account{Lamports: 2, Owner: solana.SystemProgramID}))
	require.NoError(t, tx.Commit())

	got, err := s.ProgramAccounts(owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []byte{7}, got[mine].Data)
}
