package contract

import (
	"errors"
	"fmt"
)

// errorCodeOffset is where custom program error codes start, matching the
// numbering clients decode from failed transaction logs.
const errorCodeOffset = 6000

// Error is a program error surfaced to the caller of an instruction.
type Error struct {
	Code    uint32
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

var (
	ErrSigVerificationFailed = &Error{errorCodeOffset + 0, "SigVerificationFailed", "Signature verification failed."}
	ErrTooManyPubkey         = &Error{errorCodeOffset + 1, "TooManyPubkey", "Too many public keys."}
	ErrInvalidPubkey         = &Error{errorCodeOffset + 2, "InvalidPubkey", "Invalid pubkey."}
	ErrSignatureExpired      = &Error{errorCodeOffset + 3, "SignatureExpired", "Signature is expired."}
	ErrInvalidNonce          = &Error{errorCodeOffset + 4, "InvalidNonce", "Invalid Nonce"}
	ErrInvalidTimestamp      = &Error{errorCodeOffset + 5, "InvalidTimestamp", "Invalid Timestamp."}
)

var all = []*Error{
	ErrSigVerificationFailed,
	ErrTooManyPubkey,
	ErrInvalidPubkey,
	ErrSignatureExpired,
	ErrInvalidNonce,
	ErrInvalidTimestamp,
}

// FromCode returns the program error with the given code, or nil.
func FromCode(code uint32) *Error {
	for _, e := range all {
		if e.Code == code {
			return e
		}
	}
	return nil
}

// CodeOf extracts the program error from err. ok is false if err does not
// wrap one.
func CodeOf(err error) (e *Error, ok bool) {
	ok = errors.As(err, &e)
	return e, ok
}
