package jwt_test

import (
	"testing"

	"barmeet_server/pkg/util/jwt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	jwt.Init("test-secret", 30, 24)

	token, err := jwt.GenerateAccessToken("U42")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := jwt.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "U42" {
		t.Fatalf("user id = %q", claims.UserID)
	}
	if claims.Subject != "access_token" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.TokenID != "" {
		t.Fatalf("access token carries a token id %q", claims.TokenID)
	}
}

func TestRefreshTokenCarriesTokenId(t *testing.T) {
	jwt.Init("test-secret", 30, 24)

	token, tokenID, err := jwt.GenerateRefreshToken("U42")
	if err != nil {
		t.Fatal(err)
	}
	if tokenID == "" {
		t.Fatal("empty token id")
	}
	claims, err := jwt.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "refresh_token" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.TokenID != tokenID {
		t.Fatalf("token id = %q, want %q", claims.TokenID, tokenID)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	jwt.Init("first-secret", 30, 24)
	token, err := jwt.GenerateAccessToken("U42")
	if err != nil {
		t.Fatal(err)
	}

	jwt.Init("second-secret", 30, 24)
	if _, err := jwt.ParseToken(token); err == nil {
		t.Fatal("token signed with a different secret parsed")
	}
}
