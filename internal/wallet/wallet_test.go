package wallet

import (
	"encoding/binary"
	"testing"

	"github.com/AlexZinkM/smart-wallet/internal/contract"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(b byte) PublicKey {
	var k PublicKey
	k[0] = 0x02
	k[1] = b
	return k
}

func TestMarshalLayout(t *testing.T) {
	w := New(key(1), 7, 254)
	w.Authorities = []PublicKey{key(2)}
	w.Nonce = 3

	data, err := w.Marshal()
	require.NoError(t, err)
	require.Len(t, data, 8+33+4+33+8+1+8)

	assert.Equal(t, Discriminator[:], data[:8])
	assert.Equal(t, w.Creator[:], data[8:41], "creator at offset 8")
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[41:45]))
	assert.Equal(t, w.Authorities[0][:], data[45:78])
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(data[78:86]))
	assert.Equal(t, byte(254), data[86])
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[87:95]))

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, w, decoded)
}

func TestUnmarshalPaddedAllocation(t *testing.T) {
	w := New(key(1), 9, 1)
	data, err := w.Marshal()
	require.NoError(t, err)

	padded := make([]byte, Space)
	copy(padded, data)
	decoded, err := Unmarshal(padded)
	require.NoError(t, err)
	assert.Equal(t, w, decoded)
}

func TestUnmarshalRejectsForeignData(t *testing.T) {
	_, err := Unmarshal([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidDiscriminator)

	_, err = Unmarshal(make([]byte, Space))
	assert.ErrorIs(t, err, ErrInvalidDiscriminator)
}

func TestIsAuthorized(t *testing.T) {
	w := New(key(1), 1, 255)
	w.Authorities = []PublicKey{key(2), key(3)}

	assert.True(t, w.IsAuthorized(key(1)))
	assert.True(t, w.IsAuthorized(key(3)))
	assert.False(t, w.IsAuthorized(key(4)))
}

func TestAddAuthoritiesCapacity(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		adding   int
		wantErr  error
	}{
		{"empty to five", 0, 5, nil},
		{"four plus one", 4, 1, nil},
		{"two plus three", 2, 3, nil},
		{"full plus one", 5, 1, contract.ErrTooManyPubkey},
		{"three plus three", 3, 3, contract.ErrTooManyPubkey},
		{"empty plus six", 0, 6, contract.ErrTooManyPubkey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(key(0), 1, 255)
			for i := 0; i < tt.existing; i++ {
				w.Authorities = append(w.Authorities, key(byte(10+i)))
			}
			adding := make([]PublicKey, tt.adding)
			for i := range adding {
				adding[i] = key(byte(100 + i))
			}

			err := w.AddAuthorities(adding)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Len(t, w.Authorities, tt.existing)
				return
			}
			require.NoError(t, err)
			assert.Len(t, w.Authorities, tt.existing+tt.adding)
			assert.Equal(t, adding, w.Authorities[tt.existing:])
		})
	}
}

func TestAddAuthoritiesKeepsDuplicates(t *testing.T) {
	w := New(key(0), 1, 255)
	require.NoError(t, w.AddAuthorities([]PublicKey{key(1), key(1)}))
	assert.Equal(t, []PublicKey{key(1), key(1)}, w.Authorities)
}

func TestCloneIsDeep(t *testing.T) {
	w := New(key(0), 1, 255)
	w.Authorities = []PublicKey{key(1)}
	c := w.Clone()
	c.Authorities[0] = key(2)
	c.Nonce++
	assert.Equal(t, key(1), w.Authorities[0])
	assert.Equal(t, uint64(0), w.Nonce)
}

func TestAddressDerivation(t *testing.T) {
	programID := solana.MustPublicKeyFromBase58("3jq9oBWGCUWmBynC8TTBL9KWJdGegsChJ1c8ksybGhum")

	addr, bump, err := DeriveAddress(programID, 7)
	require.NoError(t, err)

	again, err := AddressFromSeeds(programID, 7, bump)
	require.NoError(t, err)
	assert.Equal(t, addr, again)

	other, _, err := DeriveAddress(programID, 8)
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)

	w := New(key(1), 7, bump)
	assert.Equal(t, [][]byte{[]byte("smart_wallet"), {7, 0, 0, 0, 0, 0, 0, 0}, {bump}}, w.Seeds())
}
