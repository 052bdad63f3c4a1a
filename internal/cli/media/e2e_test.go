package media_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodhini-dev/mediadmin/internal/auth"
	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
	"github.com/bodhini-dev/mediadmin/internal/config"
	"github.com/bodhini-dev/mediadmin/internal/models"
	"github.com/bodhini-dev/mediadmin/internal/server"
)

var png = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1}

// startMediad runs the reference API in-process with one staff user
func startMediad(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	srv, err := server.New(&config.Config{
		Server:   config.ServerConfig{MaxUploadBytes: 1 << 20},
		Database: config.DatabaseConfig{URL: filepath.Join(dir, "mediad.sqlite")},
		Storage: config.StorageConfig{
			Backend:   config.StorageLocal,
			MediaRoot: filepath.Join(dir, "media"),
		},
	}, zerolog.Nop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	require.NoError(t, srv.GetDB().Create(&models.User{
		Username: "admin", Email: "admin@example.com", PasswordHash: hash, IsStaff: true,
	}).Error)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	baseURL := startMediad(t)

	api, err := client.New(baseURL)
	require.NoError(t, err)
	sessions := session.NewManager(session.NewMemoryStore(), api)
	mc := media.New(api, sessions, zerolog.Nop())

	_, err = sessions.Login(ctx, "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, session.StateAuthenticated, sessions.State())

	// The login response handed out a CSRF cookie which later writes echo
	assert.NotEmpty(t, api.CSRFToken())

	created, err := mc.Create(ctx, media.CreateInput{Title: "T", Filename: "t.png", File: png})
	require.NoError(t, err)
	assert.Equal(t, "T", created.Title)
	assert.Equal(t, "image", string(created.MediaType))
	assert.NotEmpty(t, created.File)

	items, err := mc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, created.ID, items[0].ID)

	require.NoError(t, mc.Delete(ctx, created.ID))

	items, err = mc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// A declared type that contradicts the content is rejected by the server
	_, err = mc.Create(ctx, media.CreateInput{Title: "T", MediaType: "audio", Filename: "t.png", File: png})
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrServer)
	assert.Equal(t, session.StateAuthenticated, sessions.State())
}

func TestEndToEnd_NonStaffLogin(t *testing.T) {
	ctx := context.Background()
	baseURL := startMediad(t)

	api, err := client.New(baseURL)
	require.NoError(t, err)

	_, err = api.Register(ctx, client.RegisterRequest{
		Username: "viewer", Email: "viewer@example.com", Password: "pw", Password2: "pw",
	})
	require.NoError(t, err)

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, api)
	_, err = sessions.Login(ctx, "viewer", "pw")
	require.Error(t, err)
	assert.True(t, session.IsForbidden(err))
	assert.Equal(t, session.StateForbidden, sessions.State())
	assert.Zero(t, store.Len())
}
