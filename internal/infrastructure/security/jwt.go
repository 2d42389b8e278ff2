package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims carried by admin tokens. Tokens are minted by the external identity
// provider; this service only verifies them.
const (
	ClaimWorkspaceID = "workspaceId"
	ClaimSubject     = "sub"
)

var ErrInvalidToken = errors.New("invalid token")

// ValidateJWT validates an HS256 token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// WorkspaceFromClaims extracts the workspace the token is scoped to.
func WorkspaceFromClaims(claims jwt.MapClaims) (string, error) {
	ws, ok := claims[ClaimWorkspaceID].(string)
	if !ok || ws == "" {
		return "", fmt.Errorf("%w: missing %s claim", ErrInvalidToken, ClaimWorkspaceID)
	}
	return ws, nil
}

// GenerateWorkspaceToken signs a token for workspaceID. Used by the token
// subcommand and tests.
func GenerateWorkspaceToken(workspaceID, subject, jwtSecret string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		ClaimWorkspaceID: workspaceID,
		ClaimSubject:     subject,
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
