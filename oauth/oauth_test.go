package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateOAuthUrl(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		clientId    string
		redirectUri string
		state       string
		result      string
	}{
		{"2115", "https://profiles.example/auth/callback", "st4te",
			"https://id.example/authorize?client_id=2115&" +
				"redirect_uri=https%3A%2F%2Fprofiles.example%2Fauth%2Fcallback&response_type=code&" +
				"scope=openid+email+profile&state=st4te"},
		{"3721", "https://profiles.example/cb", "",
			"https://id.example/authorize?client_id=3721&" +
				"redirect_uri=https%3A%2F%2Fprofiles.example%2Fcb&response_type=code&scope=openid+email+profile"},
	}

	for i, tc := range cases {
		f := RestUrlFactory(Provider{
			ClientId:    tc.clientId,
			RedirectUri: tc.redirectUri,
			AuthUrl:     "https://id.example/authorize",
			TokenUrl:    "https://id.example/token",
		})
		assert.Equal(tc.result, f(tc.state), "index: %d", i)
	}
}

func TestAccessTokenExchange(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	exchange := RestAccessTokenExchanger(Provider{
		ClientId:     "client",
		ClientSecret: "secret",
		AuthUrl:      server.URL + "/authorize",
		TokenUrl:     server.URL + "/token",
	})

	_, err := exchange(context.Background(), "bad")
	assert.ErrorIs(err, ErrInvalidCode)

	response, err := exchange(context.Background(), "good")
	if !assert.NoError(err) {
		return
	}
	assert.Equal("at", response.AccessToken)
	assert.Equal("rt", response.RefreshToken)
	assert.Equal(Token{Type: "Bearer", Value: "at"}, response.Token())
}

func TestUserInfo(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"abc-1","name":"Alice","email":"alice@a.example"}`))
	}))
	defer server.Close()

	userInfo := RestUserInfoProvider(server.URL + "/userinfo")()

	_, err := userInfo(Token{Type: "Bearer", Value: "expired"})
	assert.ErrorIs(err, ErrUnauthorized)

	user, err := userInfo(Token{Type: "Bearer", Value: "valid"})
	if !assert.NoError(err) {
		return
	}
	assert.Equal(User{Subject: "abc-1", Name: "Alice", Email: "alice@a.example"}, user)
	assert.Equal("Alice", user.DisplayName())
}
