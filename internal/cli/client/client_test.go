package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points a Client at a mock API server
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURLs(t *testing.T) {
	for _, raw := range []string{"", "127.0.0.1:8000", "ftp://example.com", "http://"} {
		_, err := New(raw)
		assert.Error(t, err, "url %q", raw)
	}
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, LoginPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "admin", req.Username)
		assert.Equal(t, "secret", req.Password)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"abc123","user_id":7,"username":"admin","is_staff":true}`))
	})

	resp, err := c.Login(context.Background(), " admin ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.Token)
	assert.Equal(t, ItemID("7"), resp.UserID)
	assert.Equal(t, "admin", resp.Username)
	assert.True(t, resp.IsStaff)
}

func TestLogin_ServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"non_field_errors":["Unable to log in with provided credentials."]}`))
	})

	_, err := c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Unable to log in with provided credentials.", apiErr.Message)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestLogin_FallbackMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Login(context.Background(), "admin", "wrong")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Login failed.", apiErr.Message)
}

func TestLogin_MissingFieldsNeverHitsNetwork(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Login(context.Background(), "  ", "secret")
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, called)
}

func TestLogin_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Login(context.Background(), "admin", "secret")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestLogin_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Login(context.Background(), "admin", "secret")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestRegister_Validation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("registration with invalid input must not reach the server")
	})

	tests := []struct {
		name string
		req  RegisterRequest
		want string
	}{
		{"missing email", RegisterRequest{Username: "u", Password: "p", Password2: "p"}, "All registration fields are required."},
		{"mismatch", RegisterRequest{Username: "u", Email: "e@x.io", Password: "p", Password2: "q"}, "Passwords do not match."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Register(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegister_ErrorPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"forbidden", http.StatusForbidden, `{"detail":"CSRF Failed"}`, "Registration forbidden. Please refresh the page and try again."},
		{"detail", http.StatusBadRequest, `{"detail":"Too many attempts"}`, "Too many attempts"},
		{"email before username", http.StatusBadRequest, `{"username":["taken"],"email":["already registered"]}`, "Email: already registered"},
		{"username", http.StatusBadRequest, `{"username":["A user with that username already exists."]}`, "Username: A user with that username already exists."},
		{"password", http.StatusBadRequest, `{"password":["Passwords do not match."]}`, "Password: Passwords do not match."},
		{"unknown", http.StatusInternalServerError, `oops`, "Registration failed. An unknown error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Register(context.Background(), RegisterRequest{
				Username: "u", Email: "e@x.io", Password: "p", Password2: "p",
			})
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.want, apiErr.Message)
		})
	}
}

func TestRegister_SuccessMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	resp, err := c.Register(context.Background(), RegisterRequest{
		Username: "u", Email: "e@x.io", Password: "p", Password2: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "Registration successful!", resp.Message)
}

func TestCSRFToken_EchoedFromCookie(t *testing.T) {
	var gotHeader string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "csrf-xyz", Path: "/"})
			w.Write([]byte(`[]`))
		case http.MethodPost:
			gotHeader = r.Header.Get(CSRFHeader)
			w.WriteHeader(http.StatusCreated)
		}
	})

	assert.Empty(t, c.CSRFToken())

	_, err := c.Do(context.Background(), "list media", http.MethodGet, "/api/media/", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "csrf-xyz", c.CSRFToken())

	_, err = c.Register(context.Background(), RegisterRequest{
		Username: "u", Email: "e@x.io", Password: "p", Password2: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "csrf-xyz", gotHeader)
}

func TestResponseErr_Classification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusBadRequest, ErrServer},
		{http.StatusInternalServerError, ErrServer},
	}

	for _, tt := range tests {
		r := &Response{Status: tt.status, Body: []byte(`{"detail":"nope"}`)}
		err := r.Err("op")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}

	assert.NoError(t, (&Response{Status: http.StatusNoContent}).Err("op"))
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Invalid token."}`, "Invalid token."},
		{`{"error":"Admin access required"}`, "Admin access required"},
		{`{"non_field_errors":["bad"]}`, "bad"},
		{`{"title":["This field is required."],"media_type":["\"doc\" is not a valid choice."]}`, `media_type: "doc" is not a valid choice.`},
		{`plain failure`, "plain failure"},
		{`<html>502</html>`, "fallback"},
		{``, "fallback"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractMessage([]byte(tt.body), "fallback"), "body %q", tt.body)
	}
}

func TestItemID_Unmarshal(t *testing.T) {
	var v struct {
		A ItemID `json:"a"`
		B ItemID `json:"b"`
		C ItemID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":42,"b":"01HZX","c":null}`), &v))
	assert.Equal(t, ItemID("42"), v.A)
	assert.Equal(t, ItemID("01HZX"), v.B)
	assert.Equal(t, ItemID(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func TestSetup(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SetupPath, r.URL.Path)

		var req SetupRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username == "taken" {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"Setup has already been completed"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Administrator created."}`))
	})

	resp, err := c.Setup(context.Background(), SetupRequest{Username: "admin", Email: "a@x.io", Password: "p", Password2: "p"})
	require.NoError(t, err)
	assert.Equal(t, "Administrator created.", resp.Message)

	_, err = c.Setup(context.Background(), SetupRequest{Username: "taken", Email: "a@x.io", Password: "p", Password2: "p"})
	assert.ErrorIs(t, err, ErrServer)
	assert.Contains(t, err.Error(), "Setup has already been completed")

	_, err = c.Setup(context.Background(), SetupRequest{Username: "admin", Email: "a@x.io", Password: "p", Password2: "q"})
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, OpSetup, apiErr.Op)
}

func TestEnsureCSRFToken_FetchesOnce(t *testing.T) {
	var gets int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gets++
		assert.Equal(t, http.MethodGet, r.Method)
		http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "csrf-abc", Path: "/"})
		w.WriteHeader(http.StatusUnauthorized)
	})

	require.NoError(t, c.EnsureCSRFToken(context.Background(), "create media", "/api/media/"))
	assert.Equal(t, "csrf-abc", c.CSRFToken())

	require.NoError(t, c.EnsureCSRFToken(context.Background(), "create media", "/api/media/"))
	assert.Equal(t, 1, gets, "a held token is not fetched again")
}

func TestEnsureCSRFToken_TransportFailure(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	err = c.EnsureCSRFToken(context.Background(), "delete media", "/api/media/")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestWithInsecureTLS_SurvivesLaterHTTPClient(t *testing.T) {
	hc := &http.Client{}
	c, err := New("https://media.example.com", WithInsecureTLS(), WithHTTPClient(hc))
	require.NoError(t, err)

	tr, ok := c.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, tr.TLSClientConfig)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)

	// The caller's client is left alone
	assert.Nil(t, hc.Transport)
	assert.Nil(t, hc.Jar)
}

func TestWithInsecureTLS_ClonesExistingTransport(t *testing.T) {
	base := &http.Transport{MaxIdleConns: 7}
	c, err := New("https://media.example.com", WithHTTPClient(&http.Client{Transport: base}), WithInsecureTLS())
	require.NoError(t, err)

	tr := c.httpClient.Transport.(*http.Transport)
	assert.Equal(t, 7, tr.MaxIdleConns)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
	assert.Nil(t, base.TLSClientConfig, "the supplied transport is not mutated")
}
