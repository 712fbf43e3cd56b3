package token

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// KeyPair holds the RSA material used to sign and verify tokens. The private
// key is read once at startup and shared read-only afterwards.
type KeyPair struct {
	privatePEM []byte
	publicPEM  []byte
}

// LoadKeyPairFromEnv reads PEM keys from JWT_PRIVATE_KEY / JWT_PUBLIC_KEY.
// Deployment pipelines often base64-encode multi-line PEMs, so values that do
// not look like PEM are decoded first. Falls back to key files when the env
// vars are unset. Missing or malformed keys are a startup error; the process
// must not come up able to mint unverifiable tokens.
func LoadKeyPairFromEnv(privateKeyPath, publicKeyPath string) (*KeyPair, error) {
	privEnv := os.Getenv("JWT_PRIVATE_KEY")
	pubEnv := os.Getenv("JWT_PUBLIC_KEY")

	if privEnv != "" && pubEnv != "" {
		priv, err := normalizePEM(privEnv, "PRIVATE KEY")
		if err != nil {
			return nil, fmt.Errorf("JWT_PRIVATE_KEY: %w", err)
		}
		pub, err := normalizePEM(pubEnv, "PUBLIC KEY")
		if err != nil {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY: %w", err)
		}
		return NewKeyPair(priv, pub)
	}

	priv, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", privateKeyPath, err)
	}
	pub, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", publicKeyPath, err)
	}
	return NewKeyPair(priv, pub)
}

// NewKeyPair validates that both PEMs parse as RSA key material.
func NewKeyPair(privatePEM, publicPEM []byte) (*KeyPair, error) {
	if _, err := jwtlib.ParseRSAPrivateKeyFromPEM(privatePEM); err != nil {
		return nil, fmt.Errorf("parse RSA private key: %w", err)
	}
	if _, err := jwtlib.ParseRSAPublicKeyFromPEM(publicPEM); err != nil {
		return nil, fmt.Errorf("parse RSA public key: %w", err)
	}
	return &KeyPair{privatePEM: privatePEM, publicPEM: publicPEM}, nil
}

func normalizePEM(value, blockType string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "-----BEGIN") {
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("value is neither PEM nor base64: %w", err)
		}
		value = strings.TrimSpace(string(decoded))
	}
	if !strings.Contains(value, "-----BEGIN") || !strings.Contains(value, blockType) {
		return nil, fmt.Errorf("missing %s PEM block", blockType)
	}
	return []byte(value), nil
}
