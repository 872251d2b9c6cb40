package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alexjbarnes/ioco/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.ioco/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	authBucket  = []byte("auth")
	prefsBucket = []byte("prefs")

	accessTokenKey    = []byte("authToken")
	refreshTokenKey   = []byte("refreshToken")
	userKey           = []byte("userData")
	isLoggedInKey     = []byte("isLoggedIn")
	showOnboardingKey = []byte("showOnboarding")
)

// State wraps a bbolt database holding credentials and client preferences.
// It is the durable credential store behind the session.
type State struct {
	db *bolt.DB
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(authBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(prefsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func (s *State) get(bucket, key []byte) (string, error) {
	var value string

	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get(key); v != nil {
			value = string(v)
		}

		return nil
	})

	return value, err
}

func (s *State) put(bucket, key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, []byte(value))
	})
}

// AccessToken returns the stored access token, or empty string.
func (s *State) AccessToken() (string, error) {
	return s.get(authBucket, accessTokenKey)
}

// SetAccessToken persists the access token.
func (s *State) SetAccessToken(token string) error {
	return s.put(authBucket, accessTokenKey, token)
}

// RefreshToken returns the stored refresh token, or empty string.
func (s *State) RefreshToken() (string, error) {
	return s.get(authBucket, refreshTokenKey)
}

// SetRefreshToken persists the refresh token.
func (s *State) SetRefreshToken(token string) error {
	return s.put(authBucket, refreshTokenKey, token)
}

// SetTokens persists both tokens in one transaction so a crash can never
// leave a new access token paired with an old refresh token on disk.
func (s *State) SetTokens(access, refresh string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Put(accessTokenKey, []byte(access)); err != nil {
			return err
		}

		return b.Put(refreshTokenKey, []byte(refresh))
	})
}

// User returns the stored user profile, or nil if none is stored.
func (s *State) User() (*models.User, error) {
	var u *models.User

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authBucket).Get(userKey)
		if v == nil {
			return nil
		}

		u = &models.User{}

		return json.Unmarshal(v, u)
	})
	if err != nil {
		return nil, err
	}

	return u, nil
}

// SetUser persists the user profile.
func (s *State) SetUser(u models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(authBucket).Put(userKey, data)
	})
}

// SetAuthBundle persists tokens, profile, and the logged-in flag in a
// single transaction. Used after a successful login.
func (s *State) SetAuthBundle(tokens models.Tokens, u models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Put(accessTokenKey, []byte(tokens.AccessToken)); err != nil {
			return err
		}

		if err := b.Put(refreshTokenKey, []byte(tokens.RefreshToken)); err != nil {
			return err
		}

		if err := b.Put(userKey, data); err != nil {
			return err
		}

		return b.Put(isLoggedInKey, []byte(strconv.FormatBool(true)))
	})
}

// IsLoggedIn reports the persisted logged-in flag. Missing means false.
func (s *State) IsLoggedIn() (bool, error) {
	v, err := s.get(authBucket, isLoggedInKey)
	if err != nil || v == "" {
		return false, err
	}

	return strconv.ParseBool(v)
}

// SetIsLoggedIn persists the logged-in flag.
func (s *State) SetIsLoggedIn(loggedIn bool) error {
	return s.put(authBucket, isLoggedInKey, strconv.FormatBool(loggedIn))
}

// ClearAuthData removes tokens and the user profile. The logged-in flag
// is left for SetIsLoggedIn to manage.
func (s *State) ClearAuthData() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		for _, k := range [][]byte{accessTokenKey, refreshTokenKey, userKey} {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

// ShowOnboarding reports whether the onboarding intro should be shown.
// Missing means true, so first runs see it.
func (s *State) ShowOnboarding() (bool, error) {
	v, err := s.get(prefsBucket, showOnboardingKey)
	if err != nil || v == "" {
		return true, err
	}

	return strconv.ParseBool(v)
}

// SetShowOnboarding persists the onboarding flag.
func (s *State) SetShowOnboarding(show bool) error {
	return s.put(prefsBucket, showOnboardingKey, strconv.FormatBool(show))
}
