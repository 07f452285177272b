package oauth

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type User struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

type UserInfo = func(token Token) (User, error)

type UserInfoProvider = func() UserInfo

// Impl of the OpenID Connect userinfo endpoint.
func RestUserInfo(userInfoUrl string) UserInfo {
	return func(token Token) (User, error) {
		agent := fiber.AcquireAgent()
		defer fiber.ReleaseAgent(agent)

		req := agent.Request()
		req.Header.SetMethod(fiber.MethodGet)
		req.SetRequestURI(userInfoUrl)
		req.Header.Set(fiber.HeaderAuthorization, token.String())

		err := agent.Parse()
		if err != nil {
			return User{}, fmt.Errorf("agent parse: %w", err)
		}

		statusCode, body, errs := agent.Bytes()
		if len(errs) != 0 {
			return User{}, fmt.Errorf("agent bytes: %v", errs)
		}
		if statusCode != fiber.StatusOK {
			if statusCode == fiber.StatusUnauthorized {
				return User{}, ErrUnauthorized
			} else {
				return User{}, fmt.Errorf("invalid status code %d: %s", statusCode, string(body))
			}
		}

		var response User
		if err = json.Unmarshal(body, &response); err != nil {
			return User{}, fmt.Errorf("unmarshal body: %w", err)
		}
		if response.Subject == "" {
			return User{}, fmt.Errorf("missing subject: %s", string(body))
		}
		return response, nil
	}
}

func RestUserInfoProvider(userInfoUrl string) UserInfoProvider {
	userInfo := RestUserInfo(userInfoUrl)
	return func() UserInfo {
		return userInfo
	}
}

// Display name preferred by the provider.
func (u User) DisplayName() string {
	if u.PreferredUsername != "" {
		return u.PreferredUsername
	}
	return u.Name
}
