package directory

import (
	"context"

	"github.com/nerrad567/neasmart-core/internal/installation"
)

// Service is the identity and directory service used by the session.
type Service interface {
	// CheckCredentials validates credentials without starting a session.
	CheckCredentials(ctx context.Context, email, password string) (bool, error)

	// Authenticate logs in and returns the token set and the user record.
	Authenticate(ctx context.Context, email, password string) (TokenData, *installation.User, error)

	// RefreshToken exchanges a refresh token for a new token set.
	RefreshToken(ctx context.Context, refreshToken string) (TokenData, error)

	// ReadUserState fetches the current user record. A nil user with a nil
	// error means the service had nothing new.
	ReadUserState(ctx context.Context, req UserStateRequest) (*installation.User, error)
}

// UserStateRequest identifies whose state to read and which installation
// is in demand.
type UserStateRequest struct {
	Username    string   `json:"username"`
	InstallIDs  []string `json:"installs_ids"`
	InstallHash string   `json:"install_hash,omitempty"`
	Token       string   `json:"token"`
	Demand      string   `json:"demand"`
}
