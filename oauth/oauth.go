package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

var (
	ErrUnauthorized = errors.New("oauth: unauthorized")
	ErrInvalidCode  = errors.New("oauth: invalid code")
)

type Token struct {
	Type  string
	Value string
}

func (t Token) String() string {
	return t.Type + " " + t.Value
}

// Provider describes an OAuth2 authorization server using the
// authorization code flow with an OpenID style userinfo endpoint.
type Provider struct {
	ClientId     string
	ClientSecret string
	RedirectUri  string
	AuthUrl      string
	TokenUrl     string
	UserInfoUrl  string
}

func (p Provider) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientId,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectUri,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthUrl,
			TokenURL: p.TokenUrl,
		},
		Scopes: []string{"openid", "email", "profile"},
	}
}

type UrlFactory = func(state string) string

type AccessTokenExchange = func(ctx context.Context, code string) (AccessTokenResponse, error)

type AccessTokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
}

func (r AccessTokenResponse) Token() Token {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Token{Type: tokenType, Value: r.AccessToken}
}

func RestUrlFactory(p Provider) UrlFactory {
	config := p.config()
	return func(state string) string {
		return config.AuthCodeURL(state)
	}
}

func RestAccessTokenExchanger(p Provider) AccessTokenExchange {
	config := p.config()
	return func(ctx context.Context, code string) (AccessTokenResponse, error) {
		token, err := config.Exchange(ctx, code)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
				return AccessTokenResponse{}, ErrInvalidCode
			}
			return AccessTokenResponse{}, fmt.Errorf("token exchange: %w", err)
		}
		return AccessTokenResponse{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			TokenType:    token.Type(),
			Expiry:       token.Expiry,
		}, nil
	}
}
