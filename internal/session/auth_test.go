package session

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fakeAuthAPI struct {
	resp        *models.LoginResponse
	loginErr    error
	logoutErr   error
	logoutCalls int
	gotEmail    string
}

func (f *fakeAuthAPI) Login(_ context.Context, email, _ string) (*models.LoginResponse, error) {
	f.gotEmail = email
	return f.resp, f.loginErr
}

func (f *fakeAuthAPI) Logout(context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func newAuthFixture(t *testing.T, api AuthAPI) (*Authenticator, *Coordinator) {
	t.Helper()
	coord := NewCoordinator(New(), testStore(t), Options{Logger: testLogger()})
	return NewAuthenticator(api, coord), coord
}

func loginResponse(t *testing.T) *models.LoginResponse {
	t.Helper()
	tokens := freshPair(t)
	return &models.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         models.User{ID: 42, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}
}

// --- Login ---

func TestLogin_EstablishesAndPersists(t *testing.T) {
	api := &fakeAuthAPI{resp: loginResponse(t)}
	auth, coord := newAuthFixture(t, api)

	u, err := auth.Login(t.Context(), "ada@example.com", "secret")

	require.NoError(t, err)
	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "ada@example.com", api.gotEmail)

	sess := coord.Session()
	assert.True(t, sess.Authenticated())
	assert.Equal(t, api.resp.Tokens(), sess.Tokens())
	assert.Equal(t, "Ada Lovelace", sess.User().FullName())

	store := coord.store
	loggedIn, err := store.IsLoggedIn()
	require.NoError(t, err)
	assert.True(t, loggedIn)

	access, err := store.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, api.resp.AccessToken, access)

	stored, err := store.User()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "ada@example.com", stored.Email)
}

func TestLogin_EmptyCredentials(t *testing.T) {
	api := &fakeAuthAPI{resp: loginResponse(t)}
	auth, coord := newAuthFixture(t, api)

	_, err := auth.Login(t.Context(), "", "secret")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = auth.Login(t.Context(), "ada@example.com", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	assert.Empty(t, api.gotEmail)
	assert.False(t, coord.Session().Authenticated())
}

func TestLogin_APIError(t *testing.T) {
	api := &fakeAuthAPI{loginErr: apperrors.ErrInvalidCredentials}
	auth, coord := newAuthFixture(t, api)

	_, err := auth.Login(t.Context(), "ada@example.com", "wrong")

	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.False(t, coord.Session().Authenticated())
}

func TestLogin_MissingTokens(t *testing.T) {
	resp := loginResponse(t)
	resp.RefreshToken = ""
	auth, coord := newAuthFixture(t, &fakeAuthAPI{resp: resp})

	_, err := auth.Login(t.Context(), "ada@example.com", "secret")

	require.ErrorIs(t, err, apperrors.ErrAPIResponse)
	assert.False(t, coord.Session().Authenticated())
}

func TestLogin_PersistFailureStillLogsIn(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockCredentialStore(ctrl)
	store.EXPECT().SetAuthBundle(gomock.Any(), gomock.Any()).Return(errors.New("read-only filesystem"))

	coord := NewCoordinator(New(), store, Options{Logger: testLogger()})
	auth := NewAuthenticator(&fakeAuthAPI{resp: loginResponse(t)}, coord)

	_, err := auth.Login(t.Context(), "ada@example.com", "secret")

	require.NoError(t, err)
	assert.True(t, coord.Session().Authenticated())
}

// --- Logout ---

func TestLogout_ClearsSessionAndStore(t *testing.T) {
	api := &fakeAuthAPI{resp: loginResponse(t)}
	auth, coord := newAuthFixture(t, api)

	_, err := auth.Login(t.Context(), "ada@example.com", "secret")
	require.NoError(t, err)

	var reasons []error
	coord.Session().OnLogout(func(r error) { reasons = append(reasons, r) })

	require.NoError(t, auth.Logout(t.Context()))

	assert.Equal(t, 1, api.logoutCalls)
	assert.False(t, coord.Session().Authenticated())
	assert.Equal(t, []error{nil}, reasons)

	loggedIn, err := coord.store.IsLoggedIn()
	require.NoError(t, err)
	assert.False(t, loggedIn)
}

func TestLogout_ServerFailureStillClears(t *testing.T) {
	api := &fakeAuthAPI{resp: loginResponse(t), logoutErr: errors.New("connection refused")}
	auth, coord := newAuthFixture(t, api)

	_, err := auth.Login(t.Context(), "ada@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, auth.Logout(t.Context()))
	assert.False(t, coord.Session().Authenticated())
}

func TestLogout_NotLoggedIn(t *testing.T) {
	api := &fakeAuthAPI{}
	auth, _ := newAuthFixture(t, api)

	err := auth.Logout(t.Context())

	require.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
	assert.Equal(t, 0, api.logoutCalls)
}

// --- Restore ---

func TestRestore(t *testing.T) {
	tokens := freshPair(t)
	user := models.User{ID: 9, Email: "grace@example.com"}

	tests := []struct {
		name  string
		setup func(t *testing.T, s CredentialStore)
		want  bool
	}{
		{
			name:  "empty store",
			setup: func(*testing.T, CredentialStore) {},
			want:  false,
		},
		{
			name: "logged in with tokens",
			setup: func(t *testing.T, s CredentialStore) {
				require.NoError(t, s.SetAuthBundle(tokens, user))
			},
			want: true,
		},
		{
			name: "flag without token",
			setup: func(t *testing.T, s CredentialStore) {
				require.NoError(t, s.SetIsLoggedIn(true))
			},
			want: false,
		},
		{
			name: "token without flag",
			setup: func(t *testing.T, s CredentialStore) {
				require.NoError(t, s.SetTokens(tokens.AccessToken, tokens.RefreshToken))
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, coord := newAuthFixture(t, &fakeAuthAPI{})
			tt.setup(t, coord.store)

			got := auth.Restore()

			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, coord.Session().Authenticated())

			if tt.want {
				assert.Equal(t, tokens, coord.Session().Tokens())
				require.NotNil(t, coord.Session().User())
				assert.Equal(t, user.Email, coord.Session().User().Email)
			}
		})
	}
}

func TestRestore_ReadFailureCountsAsAbsent(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockCredentialStore(ctrl)
	store.EXPECT().IsLoggedIn().Return(false, errors.New("database locked"))

	coord := NewCoordinator(New(), store, Options{Logger: testLogger()})
	auth := NewAuthenticator(&fakeAuthAPI{}, coord)

	assert.False(t, auth.Restore())
	assert.False(t, coord.Session().Authenticated())
}

func TestRestore_UnreadableUserStillRestores(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockCredentialStore(ctrl)
	store.EXPECT().IsLoggedIn().Return(true, nil)
	store.EXPECT().AccessToken().Return("access", nil)
	store.EXPECT().RefreshToken().Return("refresh", nil)
	store.EXPECT().User().Return(nil, errors.New("corrupt record"))

	coord := NewCoordinator(New(), store, Options{Logger: testLogger()})
	auth := NewAuthenticator(&fakeAuthAPI{}, coord)

	assert.True(t, auth.Restore())
	assert.Equal(t, models.Tokens{AccessToken: "access", RefreshToken: "refresh"}, coord.Session().Tokens())
	assert.Nil(t, coord.Session().User())
}
