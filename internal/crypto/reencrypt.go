package crypto

import (
	"fmt"
	"os"
	"strings"
)

// ChangePassword re-encrypts the keystore under newPassword with a fresh salt
// and nonce. The file is replaced only after the new one is fully written.
func ChangePassword(filePath string, oldPassword, newPassword []byte) error {
	if len(newPassword) == 0 {
		return fmt.Errorf("new password cannot be empty")
	}
	cwtFile, keyData, err := DecryptKey(filePath, oldPassword)
	if err != nil {
		return err
	}
	defer clear(keyData.PrivateKey)

	tmp := strings.TrimSuffix(filePath, ".cwt") + ".new.cwt"
	os.Remove(tmp)
	if err := EncryptKey(tmp, cwtFile.Network, cwtFile.Address, cwtFile.QR, keyData, newPassword); err != nil {
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace keystore: %w", err)
	}
	return nil
}
