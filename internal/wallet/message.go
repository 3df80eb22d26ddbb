package wallet

import (
	"bytes"
	"fmt"

	"github.com/AlexZinkM/smart-wallet/internal/contract"

	bin "github.com/gagliardetto/binary"
)

// SignatureExpiry is how many seconds after its timestamp a message is
// still accepted.
const SignatureExpiry int64 = 30

// MessageSize is the encoded size of a Message.
const MessageSize = 16

// Message is the payload an authority signs to authorize one operation.
type Message struct {
	Nonce     uint64
	Timestamp int64
}

// Bytes returns the borsh encoding: nonce then timestamp, little endian.
func (m Message) Bytes() []byte {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(m); err != nil {
		// Fixed-size integers cannot fail to encode.
		panic(fmt.Sprintf("encode message: %v", err))
	}
	return buf.Bytes()
}

// ParseMessage decodes exactly MessageSize bytes.
func ParseMessage(data []byte) (Message, error) {
	var m Message
	if len(data) != MessageSize {
		return m, fmt.Errorf("invalid message length %d", len(data))
	}
	if err := bin.NewBorshDecoder(data).Decode(&m); err != nil {
		return m, fmt.Errorf("failed to decode message: %w", err)
	}
	return m, nil
}

// CheckNonce requires the message nonce to be exactly the stored one.
func CheckNonce(m Message, storedNonce uint64) error {
	if m.Nonce != storedNonce {
		return contract.ErrInvalidNonce
	}
	return nil
}

// CheckTimestamp rejects timestamps after now or more than SignatureExpiry
// seconds before it.
func CheckTimestamp(timestamp, now int64) error {
	if timestamp > now {
		return contract.ErrInvalidTimestamp
	}
	if timestamp < now-SignatureExpiry {
		return contract.ErrSignatureExpired
	}
	return nil
}
