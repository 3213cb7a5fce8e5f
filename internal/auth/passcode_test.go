package auth

import "testing"

func TestPasscodeRoundTrip(t *testing.T) {
	hash, err := HashPasscode("open sesame")
	if err != nil {
		t.Fatalf("HashPasscode: %v", err)
	}
	if !CheckPasscode(hash, "open sesame") {
		t.Error("correct passcode rejected")
	}
	if CheckPasscode(hash, "open says me") {
		t.Error("wrong passcode accepted")
	}
}

func TestPasscodeTooShort(t *testing.T) {
	if _, err := HashPasscode("abc"); err == nil {
		t.Error("short passcode accepted")
	}
}
