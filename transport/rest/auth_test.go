package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/profilehub/profiles"
	"github.com/profilehub/profiles/inmem"
	"github.com/profilehub/profiles/oauth"
	"github.com/profilehub/profiles/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
)

func newSessionStore(t *testing.T, activityStore profiles.ActivityStore) *persistent.SessionStore {
	bunt, err := buntdb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = bunt.Close()
	})
	store := &persistent.SessionStore{Buntdb: bunt, ActivityStore: activityStore}
	if err := store.CreateIndexes(); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestCreateOAuthUrlSetsState(t *testing.T) {
	assert := assert.New(t)

	var state string
	controller := AuthController{CreateOAuthUrl: func(s string) string {
		state = s
		return "https://idp.example/authorize?state=" + s
	}}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	controller.InstallTo(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/auth/url", nil))
	if !assert.NoError(err) {
		return
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if !assert.NoError(err) {
		return
	}
	assert.NotEmpty(state)
	assert.Equal(`{"url":"https://idp.example/authorize?state=`+state+`"}`, string(body))
	assert.Contains(resp.Header.Get(fiber.HeaderSetCookie), stateCookie+"="+state)
}

func Test_AuthLoginLogoutFlow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	profileStore := inmem.NewProfileStore()
	userStore := inmem.NewUserStore(&profileStore)
	activityStore := inmem.NewActivityStore()
	signedOut := 0
	authController := AuthController{
		UserStore:    &userStore,
		SessionStore: newSessionStore(t, &activityStore),
		OnSignOut: func(session profiles.Session) {
			signedOut++
		},
	}
	authController.InstallTo(app)

	type Case struct {
		AccessTokenExchangeErr error
		User                   oauth.User
		UserInfoErr            error
		State                  string
		Validate               func(resp *http.Response, body string)
		StatusCode             int
	}

	properUser := oauth.User{Subject: "928592940128", Name: "makin", Email: "e@ma.il"}

	validateInternalError := func(resp *http.Response, body string) {
		assert.Equal(JsonErrorMessageResponse(fiber.ErrInternalServerError.Message), body)
	}

	validateCreated := func(resp *http.Response, body string) {
		assert.Equal(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON, "Invalid content type")

		user, err := userStore.BySubject(ctx, properUser.Subject)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(string(user.Email), properUser.Email)

		_, err = profileStore.ById(ctx, user.Id)
		assert.NoError(err, "registration creates an empty profile")

		logs, err := activityStore.ByUserId(ctx, user.Id)
		if !assert.NoError(err) || !assert.GreaterOrEqual(len(logs), 1) {
			return
		}
		assert.Equal(profiles.ActivitySessionCreated, logs[0].Name)
	}

	cases := []Case{
		{
			Validate: func(resp *http.Response, body string) {
				assert.Equal(JsonErrorMessageResponse("invalid state"), body)
			},
			User:       properUser,
			State:      "forged",
			StatusCode: fiber.StatusUnauthorized,
		},
		{
			Validate: func(resp *http.Response, body string) {
				assert.Equal(JsonErrorMessageResponse("invalid code"), body)
			},
			User:                   properUser,
			AccessTokenExchangeErr: oauth.ErrInvalidCode,
			StatusCode:             fiber.StatusUnauthorized,
		},
		{
			Validate:               validateInternalError,
			User:                   properUser,
			AccessTokenExchangeErr: errors.New("unexpected error"),
			StatusCode:             fiber.StatusInternalServerError,
		},
		{
			Validate:    validateInternalError,
			User:        properUser,
			UserInfoErr: errors.New("unexpected error"),
			StatusCode:  fiber.StatusInternalServerError,
		},
		{
			Validate:    validateInternalError,
			User:        properUser,
			UserInfoErr: oauth.ErrUnauthorized,
			StatusCode:  fiber.StatusInternalServerError,
		},
		{
			Validate: func(resp *http.Response, body string) {
				assert.Equal(JsonErrorMessageResponse("missing email"), body)
			},
			User:       oauth.User{Subject: "2222", Name: "no email access"},
			StatusCode: fiber.StatusBadRequest},
		{
			Validate:   validateCreated,
			User:       properUser,
			StatusCode: fiber.StatusCreated,
		},
	}

	// returns accessToken on success, otherwise empty string
	testLogin := func(tc Case) string {
		t.Logf("Case: %v\n", tc)
		state := tc.State
		if state == "" {
			state = "expected-state"
		}
		req := httptest.NewRequest("POST", "/auth/login",
			bytes.NewBuffer([]byte(fmt.Sprintf(`{"code": "21", "state": "%s"}`, state))))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(fiber.HeaderCookie, stateCookie+"=expected-state")
		resp, err := app.Test(req)
		if !assert.NoError(err) {
			return ""
		}
		defer resp.Body.Close()
		bodyBytes, err := ioutil.ReadAll(resp.Body)
		if !assert.NoError(err) {
			return ""
		}
		body := string(bodyBytes)
		tc.Validate(resp, body)

		if !assert.Equal(tc.StatusCode, resp.StatusCode) {
			return ""
		}

		if resp.StatusCode/100 == 2 {
			type Response struct {
				AccessToken string `json:"accessToken"`
			}
			response := new(Response)
			err := json.Unmarshal(bodyBytes, response)
			if !assert.NoError(err) {
				return ""
			}
			sessionExists, err := authController.SessionStore.Exists(response.AccessToken)
			if !assert.NoError(err) {
				return ""
			}
			assert.True(sessionExists)

			return response.AccessToken
		} else {
			return ""
		}
	}

	testLogout := func(tc Case, accessToken string) {
		req := httptest.NewRequest("POST", "/auth/logout", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(fiber.StatusOK, resp.StatusCode)
		sessionExists, err := authController.SessionStore.Exists(accessToken)
		if !assert.NoError(err) {
			return
		}
		assert.False(sessionExists)
		assert.Equal(1, signedOut)

		user, err := userStore.BySubject(ctx, properUser.Subject)
		if !assert.NoError(err) {
			return
		}
		logs, err := activityStore.ByUserId(ctx, user.Id)
		if assert.NoError(err) {
			assert.Equal(profiles.ActivitySignedOut, logs[0].Name)
		}
	}

	caseTest := func(tc Case) {
		authController.ExchangeAccessToken = func(ctx context.Context, code string) (oauth.AccessTokenResponse, error) {
			return oauth.AccessTokenResponse{AccessToken: "at"}, tc.AccessTokenExchangeErr
		}
		authController.UserInfoProvider = func() oauth.UserInfo {
			return func(token oauth.Token) (oauth.User, error) {
				if !strings.HasPrefix(token.String(), "Bearer ") {
					return oauth.User{}, errors.New("unexpected token type")
				}
				return tc.User, tc.UserInfoErr
			}
		}

		accessToken := testLogin(tc)
		if accessToken != "" {
			testLogout(tc, accessToken)
		}
	}

	for _, tc := range cases {
		caseTest(tc)
	}
}

func Test_SessionAuthorization(t *testing.T) {
	ctx := context.Background()
	assert := assert.New(t)

	restrictedHandler := func(ctx *fiber.Ctx) error {
		session := ctx.Locals(sessionLocalsKey).(profiles.Session)
		_, err := fmt.Fprintf(ctx, "Authorized. User id: %s", session.UserId)
		return err
	}

	userStore := inmem.NewUserStore(nil)
	activityStore := inmem.NewActivityStore()
	sessionStore := newSessionStore(t, &activityStore)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	requestAuthorizer := RequestAuthorizer(sessionStore, &userStore)
	app.Get("/test/restricted", combineHandlers(requestAuthorizer, restrictedHandler))
	app.Get("/test/dashboard", combineHandlers(requestAuthorizer, requirePermissions(profiles.PermissionAdminDashboard), restrictedHandler))
	app.Get("/test/edit", combineHandlers(requestAuthorizer, denyForbidden(profiles.PermissionProfileEdit), restrictedHandler))

	registerUser := func(oauthUser oauth.User) (profiles.User, profiles.Session, error) {
		user, err := userStore.RegisterOAuthUser(ctx, oauthUser)
		if err != nil {
			return profiles.User{}, profiles.Session{}, fmt.Errorf("register user: %w", err)
		}
		session, err := sessionStore.RegisterNew(ctx, user.Id, "127.0.0.1", "Safari (Iphone 16 256gb space gray)")
		if err != nil {
			return profiles.User{}, profiles.Session{}, fmt.Errorf("register session: %w", err)
		}
		return user, session, nil
	}

	unprivilegedUser, unprivilegedSession, err := registerUser(
		oauth.User{Subject: "makin", Name: "makin", Email: "makin"})
	if !assert.NoError(err) {
		return
	}

	privilegedUser, privilegedSession, err := registerUser(
		oauth.User{Subject: "morton", Name: "morton", Email: "morton"})
	if !assert.NoError(err) {
		return
	}
	privilegedUser.Roles = profiles.RolesByIds([]profiles.RoleId{profiles.RoleIdAdmin})
	if !assert.NoError(userStore.Update(ctx, privilegedUser)) {
		return
	}

	suspendedUser, suspendedSession, err := registerUser(
		oauth.User{Subject: "suspended", Name: "suspended", Email: "suspended"})
	if !assert.NoError(err) {
		return
	}
	suspendedUser.Roles = profiles.RolesByIds([]profiles.RoleId{profiles.RoleIdSuspended})
	if !assert.NoError(userStore.Update(ctx, suspendedUser)) {
		return
	}

	type Case struct {
		path             string
		token            string
		tokenType        string
		cookie           string
		expectedResponse string
	}
	cases := []Case{
		{
			path:             "/test/restricted",
			token:            unprivilegedSession.Token,
			tokenType:        "Bearer",
			expectedResponse: "Authorized. User id: " + string(unprivilegedUser.Id),
		},
		{
			path:             "/test/restricted",
			cookie:           unprivilegedSession.Token,
			expectedResponse: "Authorized. User id: " + string(unprivilegedUser.Id),
		},
		{
			path:             "/test/restricted",
			token:            "",
			expectedResponse: JsonErrorMessageResponse(fiber.ErrUnauthorized.Message),
		},
		{
			path:             "/test/restricted",
			token:            "unexisting_session_token",
			tokenType:        "Bearer",
			expectedResponse: JsonErrorMessageResponse(fiber.ErrUnauthorized.Message),
		},
		{
			path:             "/test/restricted",
			token:            "basic_is_not_a_valid_auth_type",
			tokenType:        "Basic",
			expectedResponse: JsonErrorMessageResponse("invalid auth type"),
		},
		// permission cases
		{
			path:             "/test/dashboard",
			token:            unprivilegedSession.Token,
			tokenType:        "Bearer",
			expectedResponse: JsonErrorMessageResponse(fiber.ErrUnauthorized.Message),
		},
		{
			path:             "/test/dashboard",
			token:            "",
			expectedResponse: JsonErrorMessageResponse(fiber.ErrUnauthorized.Message),
		},
		{
			path:             "/test/dashboard",
			token:            privilegedSession.Token,
			tokenType:        "Bearer",
			expectedResponse: "Authorized. User id: " + string(privilegedUser.Id),
		},
		{
			path:             "/test/edit",
			token:            unprivilegedSession.Token,
			tokenType:        "Bearer",
			expectedResponse: "Authorized. User id: " + string(unprivilegedUser.Id),
		},
		{
			path:             "/test/edit",
			token:            suspendedSession.Token,
			tokenType:        "Bearer",
			expectedResponse: JsonErrorMessageResponse(fiber.ErrForbidden.Message),
		},
	}

	caseTest := func(tc Case) {
		req := httptest.NewRequest("GET", tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", tc.tokenType+" "+tc.token)
		}
		if tc.cookie != "" {
			req.Header.Set(fiber.HeaderCookie, SessionCookie+"="+tc.cookie)
		}
		resp, err := app.Test(req)
		if !assert.NoError(err) {
			return
		}
		defer resp.Body.Close()

		body, err := ioutil.ReadAll(resp.Body)
		if !assert.NoError(err) {
			return
		}
		assert.Equal(tc.expectedResponse, string(body), tc)
	}
	for _, tc := range cases {
		caseTest(tc)
	}
}
