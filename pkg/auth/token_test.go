package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sponzahq/sponza-backend/pkg/config"
	"github.com/sponzahq/sponza-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "sponza-test",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleBrand,
	})
	if err != nil {
		t.Fatalf("MintAccessToken() error = %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %s, want %s", claims.UserID, userID)
	}
	if claims.Role != enums.UserRoleBrand {
		t.Errorf("Role = %s, want %s", claims.Role, enums.UserRoleBrand)
	}
	if claims.ID == "" {
		t.Error("jti is empty")
	}
}

func TestMintAccessToken_InvalidRole(t *testing.T) {
	_, err := MintAccessToken(testJWTConfig(), time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRole("moderator"),
	})
	if err == nil {
		t.Fatal("MintAccessToken() error = nil, want invalid role error")
	}
}

func TestParseAccessToken_Expired(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleInfluencer,
	})
	if err != nil {
		t.Fatalf("MintAccessToken() error = %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("ParseAccessToken() error = nil, want expiry error")
	}
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("MintAccessToken() error = %v", err)
	}

	other := cfg
	other.Secret = "other-secret"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("ParseAccessToken() error = nil, want signature error")
	}
}
