package session

import "github.com/alexjbarnes/ioco/internal/models"

//go:generate mockgen -source=store.go -destination=mock_store_test.go -package=session

// CredentialStore is the durable side of the session. Every method may
// fail; the session treats a failed read as "absent" and a failed write
// as best-effort, keeping its in-memory state authoritative.
type CredentialStore interface {
	AccessToken() (string, error)
	SetAccessToken(token string) error
	RefreshToken() (string, error)
	SetRefreshToken(token string) error
	SetTokens(access, refresh string) error
	User() (*models.User, error)
	SetUser(u models.User) error
	SetAuthBundle(tokens models.Tokens, u models.User) error
	IsLoggedIn() (bool, error)
	SetIsLoggedIn(loggedIn bool) error
	ClearAuthData() error
}
