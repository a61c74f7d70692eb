package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"libroreads/domain"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MonMotDePasseTr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)

	// Same password twice never yields the same hash (random salt).
	other, err := HashPassword(password)
	req.NoError(err)
	req.NotEqual(hash, other)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"alice", "test@example.com", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"alice", "notanemail", "ComplexPass123!"}, true},
		{"Username too short", RegisterRequest{"al", "test@example.com", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"alice", "test@example.com", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"alice", "test@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"alice", "test@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"alice", "test@example.com", "nouppercase123!!"}, true},
		{"Password too long (edge case)", RegisterRequest{"alice", "test@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestToken_RoundTrip(t *testing.T) {
	req := require.New(t)
	userID := domain.UserID(7)

	token, err := GenerateToken(userID, time.Hour)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ValidateToken(token)
	req.NoError(err)
	req.Equal(userID, claims.UserID)
	req.Equal("libroreads", claims.Issuer)
}

func TestToken_Expired(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(7, -time.Minute)
	req.NoError(err)

	_, err = ValidateToken(token)
	req.Error(err)
}

func TestToken_Tampered(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(7, time.Hour)
	req.NoError(err)

	_, err = ValidateToken(token + "x")
	req.Error(err)
}

// BenchmarkHashPassword measures the CPU/RAM impact of the Argon2id
// parameters.
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
