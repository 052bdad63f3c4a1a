package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
	"github.com/bodhini-dev/mediadmin/internal/mediatype"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fixture struct {
	media    *Client
	sessions *session.Manager
	store       *session.MemoryStore
	requests    atomic.Int32
	csrfFetches atomic.Int32
}

const testCSRF = "csrf-test"

// newFixture starts a mock API and a logged-in admin session pointing at it.
// Unauthenticated GETs are the csrftoken fetch and are answered before
// handler sees them.
func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()

	f := &fixture{store: session.NewMemoryStore()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.Method == http.MethodGet && r.Header.Get("Authorization") == "" {
			f.csrfFetches.Add(1)
			http.SetCookie(w, &http.Cookie{Name: client.CSRFCookieName, Value: testCSRF, Path: "/"})
			w.Write([]byte(`[]`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	api, err := client.New(srv.URL)
	require.NoError(t, err)

	require.NoError(t, f.store.Set(session.KeyToken, "tok"))
	require.NoError(t, f.store.Set(session.KeyIsStaff, "true"))
	require.NoError(t, f.store.Set(session.KeyUsername, "admin"))

	f.sessions = session.NewManager(f.store, api)
	_, err = f.sessions.Restore()
	require.NoError(t, err)

	f.media = New(api, f.sessions, zerolog.Nop())
	return f
}

func (f *fixture) requireCleared(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, f.store.Len(), "all persisted keys must be cleared")
	assert.False(t, f.sessions.Current().Authenticated())
}

func TestList(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, CollectionPath, r.URL.Path)
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":1,"title":"Sunset","description":"","media_type":"image","file":"http://x/media/sunset.png"}]`))
	})

	items, err := f.media.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, client.ItemID("1"), items[0].ID)
	assert.Equal(t, "Sunset", items[0].Title)
	assert.Equal(t, mediatype.Image, items[0].MediaType)
}

func TestList_EmptyIsSuccess(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	items, err := f.media.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		calls := map[string]func(f *fixture) error{
			"list": func(f *fixture) error {
				_, err := f.media.List(context.Background())
				return err
			},
			"create": func(f *fixture) error {
				_, err := f.media.Create(context.Background(), CreateInput{Title: "T", MediaType: "image", Filename: "a.png", File: pngHeader})
				return err
			},
			"delete": func(f *fixture) error {
				return f.media.Delete(context.Background(), "1")
			},
		}

		for name, call := range calls {
			t.Run(name+"/"+http.StatusText(status), func(t *testing.T) {
				f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(status)
					w.Write([]byte(`{"detail":"Invalid token."}`))
				})

				err := call(f)
				require.ErrorIs(t, err, client.ErrUnauthorized)
				f.requireCleared(t)
			})
		}
	}
}

func TestCreate_ValidationNeverHitsNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid input must not reach the server")
	})

	inputs := map[string]CreateInput{
		"blank title": {Title: "   ", MediaType: "image", File: pngHeader},
		"no file":     {Title: "T", MediaType: "image"},
		"empty file":  {Title: "T", MediaType: "image", File: []byte{}},
		"bad type":    {Title: "T", MediaType: "document", File: pngHeader},
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := f.media.Create(context.Background(), in)
			assert.ErrorIs(t, err, client.ErrValidation)
		})
	}

	_, err := f.media.Create(context.Background(), CreateInput{Title: "", File: pngHeader})
	assert.Contains(t, err.Error(), InputRequiredMessage)
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestCreate_MultipartBody(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary="))
		assert.Equal(t, "Token tok", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Sunset", r.FormValue("title"))
		assert.Equal(t, "evening", r.FormValue("description"))
		assert.Equal(t, "image", r.FormValue("media_type"))

		file, header, err := r.FormFile("file")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, pngHeader, data)
			assert.Equal(t, "sunset.png", header.Filename)
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"01HZX","title":"Sunset","description":"evening","media_type":"image","file":"http://x/media-files/01HZX.png"}`))
	})

	// media type omitted: detected from the PNG signature
	item, err := f.media.Create(context.Background(), CreateInput{
		Title:       "  Sunset ",
		Description: "evening",
		Filename:    "/tmp/sunset.png",
		File:        pngHeader,
	})
	require.NoError(t, err)
	assert.Equal(t, client.ItemID("01HZX"), item.ID)
	assert.Equal(t, "http://x/media-files/01HZX.png", item.File)
}

func TestCreate_ServerErrorKeepsBody(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"media_type":["\"doc\" is not a valid choice."]}`))
	})

	_, err := f.media.Create(context.Background(), CreateInput{Title: "T", MediaType: "image", File: pngHeader})
	require.ErrorIs(t, err, client.ErrServer)

	var apiErr *client.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Body, "not a valid choice")
	assert.True(t, f.sessions.Current().Authenticated(), "a 400 must not clear the session")
}

func TestDelete(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/media/42/", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, f.media.Delete(context.Background(), "42"))
}

func TestWrites_EchoCSRFToken(t *testing.T) {
	var posted, deleted string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			posted = r.Header.Get(client.CSRFHeader)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"1","title":"T","media_type":"image"}`))
		case http.MethodDelete:
			deleted = r.Header.Get(client.CSRFHeader)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	_, err := f.media.Create(context.Background(), CreateInput{Title: "T", Filename: "a.png", File: pngHeader})
	require.NoError(t, err)
	assert.Equal(t, testCSRF, posted)

	require.NoError(t, f.media.Delete(context.Background(), "1"))
	assert.Equal(t, testCSRF, deleted)

	assert.Equal(t, int32(1), f.csrfFetches.Load(), "the cookie is fetched once and reused")
}

func TestDelete_AnonymousFailsLocally(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("anonymous delete must not reach the server")
	})
	require.NoError(t, f.sessions.Logout())

	err := f.media.Delete(context.Background(), "42")
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Equal(t, int32(0), f.requests.Load())
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	var f *fixture
	f = newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		// The user logs out and back in while the request is in flight
		assert.NoError(t, f.sessions.Logout())
		assert.NoError(t, f.store.Set(session.KeyToken, "tok2"))
		assert.NoError(t, f.store.Set(session.KeyIsStaff, "true"))
		_, err := f.sessions.Restore()
		assert.NoError(t, err)

		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.media.List(context.Background())
	require.ErrorIs(t, err, client.ErrStaleSession)

	// The newer session survives the late 401
	assert.Equal(t, "tok2", f.sessions.Current().Token)
	token, err := f.store.Get(session.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok2", token)
}
