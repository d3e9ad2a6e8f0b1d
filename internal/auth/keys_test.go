package auth

import (
	"strings"
	"testing"
)

func TestGenerateSDKKey(t *testing.T) {
	key, err := GenerateSDKKey()
	if err != nil {
		t.Fatalf("GenerateSDKKey() error = %v", err)
	}

	if !strings.HasPrefix(key, KeyPrefix) {
		t.Errorf("GenerateSDKKey() = %v, want prefix %v", key, KeyPrefix)
	}

	// Base64 URL encoding without padding: 32 bytes -> 43 characters.
	expectedLen := len(KeyPrefix) + 43
	if len(key) != expectedLen {
		t.Errorf("GenerateSDKKey() length = %v, want %v", len(key), expectedLen)
	}

	if !ValidKeyShape(key) {
		t.Errorf("ValidKeyShape(%v) = false, want true", key)
	}

	other, err := GenerateSDKKey()
	if err != nil {
		t.Fatalf("GenerateSDKKey() error = %v", err)
	}
	if key == other {
		t.Error("GenerateSDKKey() returned the same key twice")
	}
}

func TestValidKeyShape(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"generated shape", "fdk_dGVzdC1rZXktbWF0ZXJpYWw", true},
		{"wrong prefix", "fsk_dGVzdA", false},
		{"no prefix", "dGVzdA", false},
		{"prefix only", "fdk_", false},
		{"invalid base64", "fdk_not!valid!base64!", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidKeyShape(tt.key); got != tt.want {
				t.Errorf("ValidKeyShape(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestHashAndVerifySDKKey(t *testing.T) {
	key := "fdk_dGVzdC1rZXktbWF0ZXJpYWw"

	hash, err := HashSDKKey(key)
	if err != nil {
		t.Fatalf("HashSDKKey() error = %v", err)
	}

	if !VerifySDKKey(key, hash) {
		t.Error("VerifySDKKey() failed for correct key")
	}
	if VerifySDKKey("fdk_d3Jvbmcta2V5", hash) {
		t.Error("VerifySDKKey() succeeded for incorrect key")
	}
}

func TestVerifyKeyConstantTime(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
		want     bool
	}{
		{"equal", "admin-123", "admin-123", true},
		{"not equal", "admin-456", "admin-123", false},
		{"empty got", "", "admin-123", false},
		{"empty expected", "admin-123", "", false},
		{"both empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyKeyConstantTime(tt.got, tt.expected); got != tt.want {
				t.Errorf("VerifyKeyConstantTime(%q, %q) = %v, want %v", tt.got, tt.expected, got, tt.want)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer fdk_abc", "fdk_abc"},
		{"lowercase scheme", "bearer fdk_abc", "fdk_abc"},
		{"extra whitespace", "  Bearer   fdk_abc  ", "fdk_abc"},
		{"no scheme", "fdk_abc", "fdk_abc"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBearerToken(tt.header); got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
