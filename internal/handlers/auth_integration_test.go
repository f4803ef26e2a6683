package handlers_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authflow/internal/handlers/testutil"
	"github.com/charlesng35/authflow/internal/middleware"
)

func TestAuthHandler_SignUpActivateSignIn(t *testing.T) {
	env := testutil.NewEnv(t)

	signup := env.Request(http.MethodPost, "/api/auth/signup", testutil.SignUpPayload("Ada@Example.COM", "secret1"), "")
	require.Equal(t, http.StatusCreated, signup.Code, signup.Body.String())

	var created struct {
		Account struct {
			ID              string     `json:"id"`
			Email           string     `json:"email"`
			EmailVerifiedAt *time.Time `json:"email_verified_at"`
		} `json:"account"`
		ActivationEmailSent bool `json:"activation_email_sent"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, signup).Data, &created)
	require.Equal(t, "ada@example.com", created.Account.Email)
	require.Nil(t, created.Account.EmailVerifiedAt)
	require.True(t, created.ActivationEmailSent)
	require.NotContains(t, signup.Body.String(), "password")

	mail := env.Outbox.Last(t)
	require.Equal(t, "ada@example.com", mail.To)
	require.Equal(t, "Account Activation", mail.Subject)
	link := mail.LinkPath(t)
	require.True(t, strings.HasPrefix(link, "/auth/activation/"), link)

	// unverified accounts cannot sign in even with the right password
	early := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "ada@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusForbidden, early.Code, early.Body.String())
	require.Equal(t, "EMAIL_NOT_VERIFIED", testutil.DecodeResponse(t, early).Error.Code)

	activation := env.Request(http.MethodGet, link, nil, "")
	require.Equal(t, http.StatusOK, activation.Code, activation.Body.String())
	var activated map[string]string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, activation).Data, &activated)
	require.Equal(t, "success", activated["result"])
	require.Equal(t, "Success! Your user account is now activated", activated["message"])

	again := env.Request(http.MethodGet, link, nil, "")
	require.Equal(t, http.StatusOK, again.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, again).Data, &activated)
	require.Equal(t, "alreadyActivated", activated["result"])
	require.Equal(t, "Your user account is already activated", activated["message"])

	signin := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "ADA@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, signin.Code, signin.Body.String())

	var result testutil.SignInResult
	testutil.DecodeInto(t, testutil.DecodeResponse(t, signin).Data, &result)
	require.Equal(t, created.Account.ID, result.User.ID)
	require.Equal(t, "Ada", result.User.FirstName)
	require.NotEmpty(t, result.Token)
	require.True(t, result.ExpiresAt.After(time.Now()))

	cookies := signin.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, middleware.SessionCookieName, cookies[0].Name)
	require.Equal(t, result.Token, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestAuthHandler_SignUpRejectsDuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("grace@example.com", "secret1")

	dup := env.Request(http.MethodPost, "/api/auth/signup", testutil.SignUpPayload("Grace@Example.com", "another1"), "")
	require.Equal(t, http.StatusConflict, dup.Code, dup.Body.String())
	require.Equal(t, "CONFLICT", testutil.DecodeResponse(t, dup).Error.Code)
	require.Equal(t, 1, env.Outbox.Count())
}

func TestAuthHandler_SignUpValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	cases := []struct {
		name    string
		mutate  func(map[string]any)
		field   string
		message string
	}{
		{
			name:    "password mismatch",
			mutate:  func(p map[string]any) { p["confirmPassword"] = "different" },
			field:   "confirmPassword",
			message: "Passwords do not match",
		},
		{
			name:    "terms not accepted",
			mutate:  func(p map[string]any) { p["accepted"] = false },
			field:   "accepted",
			message: "Please accept all terms",
		},
		{
			name:    "invalid phone",
			mutate:  func(p map[string]any) { p["phone"] = "12" },
			field:   "phone",
			message: "Please enter a valid phone number",
		},
		{
			name:    "short password",
			mutate:  func(p map[string]any) { p["password"], p["confirmPassword"] = "abc", "abc" },
			field:   "password",
			message: "password must be at least 6 characters",
		},
		{
			name:    "password over bcrypt byte limit",
			mutate:  func(p map[string]any) { p["password"], p["confirmPassword"] = strings.Repeat("é", 40), strings.Repeat("é", 40) },
			field:   "password",
			message: "Password is too long, use fewer accented or non-Latin characters",
		},
		{
			name:    "name with digits",
			mutate:  func(p map[string]any) { p["firstName"] = "Ada1" },
			field:   "firstName",
			message: "first name must contain letters only",
		},
		{
			name:    "invalid email",
			mutate:  func(p map[string]any) { p["email"] = "not-an-email" },
			field:   "email",
			message: "email must be a valid email address",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := testutil.SignUpPayload("valid@example.com", "secret1")
			tc.mutate(payload)

			w := env.Request(http.MethodPost, "/api/auth/signup", payload, "")
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := testutil.DecodeResponse(t, w)
			require.Equal(t, "BAD_REQUEST", resp.Error.Code)
			require.Contains(t, resp.Error.Message, tc.message)
			require.Equal(t, tc.message, resp.Error.Fields[tc.field])
		})
	}

	require.Zero(t, env.Outbox.Count())
}

func TestAuthHandler_SignUpWhenMailFails(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Outbox.FailWith(errors.New("smtp down"))

	w := env.Request(http.MethodPost, "/api/auth/signup", testutil.SignUpPayload("mail@example.com", "secret1"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &created)
	require.Equal(t, false, created["activation_email_sent"])

	// the account exists, so a resend succeeds once mail recovers
	env.Outbox.FailWith(nil)
	resend := env.Request(http.MethodPost, "/api/auth/activation/resend", map[string]string{"email": "mail@example.com"}, "")
	require.Equal(t, http.StatusOK, resend.Code, resend.Body.String())
	require.Equal(t, 1, env.Outbox.Count())
	require.Equal(t, "Account Activation", env.Outbox.Last(t).Subject)
}

func TestAuthHandler_SignInFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("linus@example.com", "secret1")

	wrong := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "linus@example.com", "password": "nope"}, "")
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	wrongResp := testutil.DecodeResponse(t, wrong)

	unknown := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "nobody@example.com", "password": "nope"}, "")
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	unknownResp := testutil.DecodeResponse(t, unknown)

	require.Equal(t, "INVALID_CREDENTIALS", wrongResp.Error.Code)
	require.Equal(t, wrongResp.Error, unknownResp.Error)

	empty := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "linus@example.com", "password": ""}, "")
	require.Equal(t, http.StatusBadRequest, empty.Code)
	require.Empty(t, wrong.Result().Cookies())
}

func TestAuthHandler_ActivationUnknownToken(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/auth/activation/not-a-token", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "User account does not exist", resp.Error.Message)
}

func TestAuthHandler_SessionAndProfile(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("barbara@example.com", "secret1")
	login := env.SignIn("barbara@example.com", "secret1")

	anon := env.Request(http.MethodGet, "/api/auth/session", nil, "")
	require.Equal(t, http.StatusOK, anon.Code)
	var state map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, anon).Data, &state)
	require.Equal(t, false, state["authenticated"])

	req := env.NewRequest(http.MethodGet, "/api/auth/session", nil, "")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: login.Token})
	withCookie := env.Do(req)
	require.Equal(t, http.StatusOK, withCookie.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, withCookie).Data, &state)
	require.Equal(t, true, state["authenticated"])
	user, ok := state["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, login.User.ID, user["id"])

	profile := env.Request(http.MethodGet, "/api/profile", nil, login.Token)
	require.Equal(t, http.StatusOK, profile.Code, profile.Body.String())
	var body map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, profile).Data, &body)
	require.Equal(t, "barbara@example.com", body["email"])
	require.NotNil(t, body["email_verified_at"])

	unauth := env.Request(http.MethodGet, "/api/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, unauth.Code)

	forged := env.Request(http.MethodGet, "/api/profile", nil, login.Token+"x")
	require.Equal(t, http.StatusUnauthorized, forged.Code)

	signout := env.Request(http.MethodPost, "/api/auth/signout", nil, "")
	require.Equal(t, http.StatusOK, signout.Code)
	cleared := signout.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Equal(t, middleware.SessionCookieName, cleared[0].Name)
	require.Empty(t, cleared[0].Value)
}

func TestAuthHandler_PasswordResetFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("margaret@example.com", "secret1")

	unknown := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusNotFound, unknown.Code)
	require.Equal(t, "ACCOUNT_NOT_FOUND", testutil.DecodeResponse(t, unknown).Error.Code)

	forgot := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "margaret@example.com"}, "")
	require.Equal(t, http.StatusOK, forgot.Code, forgot.Body.String())
	var sent map[string]string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, forgot).Data, &sent)
	require.Equal(t, "Reset password link has been sent to your email!", sent["message"])

	mail := env.Outbox.Last(t)
	require.Equal(t, "Reset Password", mail.Subject)
	link := mail.LinkPath(t)
	require.True(t, strings.HasPrefix(link, "/auth/resetPassword/"), link)

	check := env.Request(http.MethodGet, link, nil, "")
	require.Equal(t, http.StatusOK, check.Code, check.Body.String())

	invalid := env.Request(http.MethodGet, "/auth/resetPassword/garbage", nil, "")
	require.Equal(t, http.StatusBadRequest, invalid.Code)
	require.Equal(t, "Invalid URL", testutil.DecodeResponse(t, invalid).Error.Message)

	mismatch := env.Request(http.MethodPost, link, map[string]string{"password": "newpass1", "confirmPassword": "newpass2"}, "")
	require.Equal(t, http.StatusBadRequest, mismatch.Code)
	require.Contains(t, testutil.DecodeResponse(t, mismatch).Error.Message, "Passwords do not match")

	longPassword := strings.Repeat("é", 40)
	tooLong := env.Request(http.MethodPost, link, map[string]string{"password": longPassword, "confirmPassword": longPassword}, "")
	require.Equal(t, http.StatusBadRequest, tooLong.Code, tooLong.Body.String())
	require.Contains(t, testutil.DecodeResponse(t, tooLong).Error.Fields, "password")

	accented := strings.Repeat("é", 36)
	accentedReset := env.Request(http.MethodPost, link, map[string]string{"password": accented, "confirmPassword": accented}, "")
	require.Equal(t, http.StatusOK, accentedReset.Code, accentedReset.Body.String())
	env.SignIn("margaret@example.com", accented)

	reset := env.Request(http.MethodPost, link, map[string]string{"password": "newpass1", "confirmPassword": "newpass1"}, "")
	require.Equal(t, http.StatusOK, reset.Code, reset.Body.String())
	var done map[string]string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, reset).Data, &done)
	require.Equal(t, "Your password has been reset successfully!", done["message"])

	old := env.Request(http.MethodPost, "/api/auth/signin", map[string]string{"email": "margaret@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusUnauthorized, old.Code)
	env.SignIn("margaret@example.com", "newpass1")

	// links stay valid until expiry unless single use is enabled
	replay := env.Request(http.MethodGet, link, nil, "")
	require.Equal(t, http.StatusOK, replay.Code)
}

func TestAuthHandler_SingleUseResetLinks(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithSingleUseResetTokens())
	env.RegisterAndActivate("hedy@example.com", "secret1")

	forgot := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "hedy@example.com"}, "")
	require.Equal(t, http.StatusOK, forgot.Code)
	link := env.Outbox.Last(t).LinkPath(t)

	body := map[string]string{"password": "newpass1", "confirmPassword": "newpass1"}
	first := env.Request(http.MethodPost, link, body, "")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := env.Request(http.MethodPost, link, body, "")
	require.Equal(t, http.StatusBadRequest, second.Code)
	require.Equal(t, "Invalid URL", testutil.DecodeResponse(t, second).Error.Message)

	check := env.Request(http.MethodGet, link, nil, "")
	require.Equal(t, http.StatusBadRequest, check.Code)
}

func TestAuthHandler_ActivationTokenCannotResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)

	signup := env.Request(http.MethodPost, "/api/auth/signup", testutil.SignUpPayload("joan@example.com", "secret1"), "")
	require.Equal(t, http.StatusCreated, signup.Code)
	link := env.Outbox.Last(t).LinkPath(t)
	token := strings.TrimPrefix(link, "/auth/activation/")

	w := env.Request(http.MethodGet, "/auth/resetPassword/"+token, nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_ForgotPasswordMailFailure(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("katherine@example.com", "secret1")
	env.Outbox.FailWith(errors.New("relay refused"))

	w := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "katherine@example.com"}, "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, "TRANSPORT_ERROR", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_ResendActivation(t *testing.T) {
	env := testutil.NewEnv(t)
	env.RegisterAndActivate("dorothy@example.com", "secret1")

	w := env.Request(http.MethodPost, "/api/auth/activation/resend", map[string]string{"email": "dorothy@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &body)
	require.Equal(t, "alreadyActivated", body["result"])
	require.Equal(t, 1, env.Outbox.Count())

	missing := env.Request(http.MethodPost, "/api/auth/activation/resend", map[string]string{"email": "nobody@example.com"}, "")
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestAuthHandler_SignInRateLimited(t *testing.T) {
	env := testutil.NewEnv(t, testutil.WithRateLimit(2, time.Minute))

	creds := map[string]string{"email": "nobody@example.com", "password": "guess"}
	for i := 0; i < 2; i++ {
		w := env.Request(http.MethodPost, "/api/auth/signin", creds, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	limited := env.Request(http.MethodPost, "/api/auth/signin", creds, "")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	require.Equal(t, "TOO_MANY_REQUESTS", testutil.DecodeResponse(t, limited).Error.Code)

	// other routes keep their own budget
	session := env.Request(http.MethodGet, "/api/auth/session", nil, "")
	require.Equal(t, http.StatusOK, session.Code)
}
