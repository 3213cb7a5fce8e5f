package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPasscode hashes an optional session passcode for storage. The host
// sets a passcode; joiners present it before a join token is issued.
func HashPasscode(passcode string) (string, error) {
	if len(passcode) < 4 {
		return "", errors.New("passcode must be at least 4 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(hash), nil
}

// CheckPasscode reports whether the presented passcode matches the stored
// hash.
func CheckPasscode(hash, passcode string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)) == nil
}
