package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("test-secret"), Issuer: "wschatserver", TTL: time.Hour}

	token, err := GenerateToken(cfg, "ops")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Name != "ops" {
		t.Fatalf("name = %q, want ops", claims.Name)
	}
	if claims.Issuer != "wschatserver" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("test-secret"), Issuer: "wschatserver", TTL: time.Hour}
	token, err := GenerateToken(cfg, "ops")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := &JWTConfig{Secret: []byte("different"), Issuer: "wschatserver"}
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("test-secret"), Issuer: "wschatserver", TTL: -time.Minute}
	token, err := GenerateToken(cfg, "ops")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("test-secret"), Issuer: "someone-else", TTL: time.Hour}
	token, err := GenerateToken(cfg, "ops")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	strict := &JWTConfig{Secret: []byte("test-secret"), Issuer: "wschatserver"}
	if _, err := ValidateToken(strict, token); err == nil {
		t.Fatalf("token accepted with the wrong issuer")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("test-secret")}
	if _, err := ValidateToken(cfg, "not.a.token"); err == nil {
		t.Fatalf("garbage accepted")
	}
}
