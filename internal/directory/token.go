package directory

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenData is the bearer token set issued by the identity service.
// It is replaced wholesale on every refresh.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Valid reports whether an access token is present.
func (t TokenData) Valid() bool {
	return t.AccessToken != ""
}

// Lifetime returns how long the access token is valid for.
//
// It uses ExpiresIn when the service sent it, and otherwise the "exp"
// claim of the access token read without signature verification (the
// token is only ever verified by the broker). Zero means unknown.
func (t TokenData) Lifetime() time.Duration {
	if t.ExpiresIn > 0 {
		return time.Duration(t.ExpiresIn) * time.Second
	}
	return jwtLifetime(t.AccessToken, time.Now())
}

func jwtLifetime(token string, now time.Time) time.Duration {
	if token == "" {
		return 0
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}

	if d := exp.Sub(now); d > 0 {
		return d
	}
	return 0
}
