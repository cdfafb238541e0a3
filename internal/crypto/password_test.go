package crypto

import (
	"errors"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestPasswordPolicy(t *testing.T) {
	if err := ValidatePassword("Abcdef1!"); err != nil {
		t.Fatalf("expected Abcdef1! to pass policy, got %v", err)
	}
	if err := ValidatePassword("Ab1!"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected too-short error, got %v", err)
	}
	weak := []string{
		"abcdefgh", // no upper, digit, special
		"ABCDEFG1", // no lower, special
		"Abcdefg!", // no digit
		"Abcdefg1", // no special
	}
	for _, password := range weak {
		if err := ValidatePassword(password); !errors.Is(err, ErrPasswordTooWeak) {
			t.Fatalf("expected %q to fail strength policy, got %v", password, err)
		}
	}
}
