package openapi

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	RoleDoctor    = "Doctor"
	RoleTeacher   = "Teacher"
	RoleAssistant = "Assistant"
	RoleStudent   = "Student"
)

type JWT struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// IdentityID 回傳 token subject 代表的身份
func (t *JWT) IdentityID() (uuid.UUID, error) {
	return uuid.Parse(t.Subject)
}

// HasAnyRole 回傳 token 是否帶有任一個指定角色
func (t *JWT) HasAnyRole(roles ...string) bool {
	return lo.Some(t.Roles, roles)
}

func ParseAndValidateJWT(tokenString string, key ed25519.PublicKey) (*JWT, error) {
	const op = "ParseJWT"
	token, err := jwt.ParseWithClaims(tokenString, &JWT{}, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: token is invalid", op)
	}
	claims, ok := token.Claims.(*JWT)
	if !ok {
		return nil, fmt.Errorf("%s: token claims are invalid", op)
	}
	return claims, nil
}

// LoadPublicKey 讀取 PEM 格式的 Ed25519 公鑰
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	const op = "LoadPublicKey"
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to read public key, err=%w", op, err)
	}
	key, err := jwt.ParseEdPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public key, err=%w", op, err)
	}
	publicKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("[%s] Public key is not Ed25519", op)
	}
	return publicKey, nil
}
