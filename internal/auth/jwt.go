package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wapm-community/wapm/internal/werror"
)

// Claims is the subset of a registry session token's claims whoami needs
// to display, stripped down from the teacher's JWTClaims to the fields
// this spec's token model actually carries (no WorkOS org/actor-type
// claims).
type Claims struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// looksLikeJWT reports whether token has the three dot-separated
// segments of a JWT (spec section 4.O: decode locally only when the
// token is shaped like one).
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

// decodeClaims extracts claims from token without verifying its
// signature, the teacher's ExtractUserInfo pattern: the registry is the
// authority on validity, checked server-side on every authenticated
// call, so this is purely a display shortcut to avoid a verifyToken
// round trip.
func decodeClaims(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return nil, werror.New(werror.KindAuth, "malformed token claims")
	}

	c := &Claims{}
	if sub, ok := (*claims)["sub"].(string); ok {
		c.Subject = sub
	}
	if email, ok := (*claims)["email"].(string); ok {
		c.Email = email
	}
	if username, ok := (*claims)["username"].(string); ok {
		c.Username = username
	}
	return c, nil
}

// DisplayName returns the best available identifier for the user: the
// username, falling back to the email, falling back to the subject.
func (c *Claims) DisplayName() string {
	switch {
	case c.Username != "":
		return c.Username
	case c.Email != "":
		return c.Email
	default:
		return c.Subject
	}
}
