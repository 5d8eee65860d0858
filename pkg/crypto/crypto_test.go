package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// TestEncryptDecrypt проверяет базовый цикл шифрования/расшифровки
func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"simple text", "Hello, World!"},
		{"gateway secret example", "abc123def456ghi789"},
		{"unicode text", "Привет мир"},
		{"long text", strings.Repeat("a", 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt(tt.plaintext, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}

			// Проверяем что результат - валидный base64
			if _, err := base64.StdEncoding.DecodeString(encrypted); err != nil {
				t.Errorf("Encrypted result is not valid base64: %v", err)
			}

			decrypted, err := Decrypt(encrypted, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}

			if decrypted != tt.plaintext {
				t.Errorf("Decrypted text mismatch: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

// TestEncryptDifferentResults проверяет что каждое шифрование даёт
// разный результат (случайный nonce)
func TestEncryptDifferentResults(t *testing.T) {
	key, _ := GenerateKey()

	a, err := Encrypt("same secret", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	b, err := Encrypt("same secret", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if a == b {
		t.Error("two encryptions of the same plaintext must differ")
	}
}

func TestEncryptInvalidKey(t *testing.T) {
	if _, err := Encrypt("secret", []byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("expected ErrInvalidKeyLength, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	encrypted, err := Encrypt("secret", key1)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := Decrypt(encrypted, key2); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	key, _ := GenerateKey()

	if _, err := Decrypt("not-base64!!!", key); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}

	short := base64.StdEncoding.EncodeToString([]byte("ab"))
	if _, err := Decrypt(short, key); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

// ============================================================
// Token hashing
// ============================================================

func TestHashAndVerifyToken(t *testing.T) {
	hash, err := HashToken("operator-secret-token")
	if err != nil {
		t.Fatalf("HashToken failed: %v", err)
	}

	if err := VerifyToken("operator-secret-token", hash); err != nil {
		t.Errorf("VerifyToken failed for correct token: %v", err)
	}

	if err := VerifyToken("wrong-token", hash); !errors.Is(err, ErrTokenMismatch) {
		t.Errorf("expected ErrTokenMismatch, got %v", err)
	}
}

func TestHashTokenValidation(t *testing.T) {
	if _, err := HashToken(""); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}

	if _, err := HashToken(strings.Repeat("x", 73)); !errors.Is(err, ErrTokenTooLong) {
		t.Errorf("expected ErrTokenTooLong, got %v", err)
	}
}

func TestCheckTokenMatch(t *testing.T) {
	hash, _ := HashToken("tok")

	if !CheckTokenMatch("tok", hash) {
		t.Error("expected match")
	}
	if CheckTokenMatch("other", hash) {
		t.Error("expected mismatch")
	}
}
