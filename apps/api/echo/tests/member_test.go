package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/tests"
)

func Test_memberApi_login(t *testing.T) {
	env := setup(t)
	pwd := "Pa$$w0rd!"
	testutil.CreateMember(t, env.repos.Members, "biz1", "Awa", "awa@ttr.test", pwd, []string{member.RoleOwner}, true)
	testutil.CreateMember(t, env.repos.Members, "biz1", "Kofi", "kofi@ttr.test", pwd, nil, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/members/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, member.LoginRequest{Email: "nobody@ttr.test", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, member.LoginRequest{Email: "awa@ttr.test", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, member.LoginRequest{Email: "kofi@ttr.test", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, env, tests)

	t.Run("success", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/members/login", "",
			marchallObj(t, member.LoginRequest{Email: " AWA@ttr.test ", Password: pwd}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		token, ok := unmarshallObj(t, rec.Body.Bytes())["token"].(string)
		require.True(t, ok)

		rec = env.do(http.MethodGet, "/v1/members/me", token)
		require.Equal(t, http.StatusOK, rec.Code)
		me := unmarshallObj(t, rec.Body.Bytes())
		assert.Equal(t, "awa@ttr.test", me["email"])
		assert.Equal(t, "biz1", me["business_id"])
		assert.NotContains(t, me, "password_hash")
	})
}

func Test_memberApi_me(t *testing.T) {
	env := setup(t)
	m := testutil.CreateMember(t, env.repos.Members, "biz1", "Awa", "awa@ttr.test", "", nil, true)

	ghost := member.Member{ID: "ghost", BusinessID: "biz1"}
	tests := []httpTest{
		{name: "auth required", path: "/v1/members/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "bad token", path: "/v1/members/me", token: "garbage", wantCode: http.StatusUnauthorized},
		{
			name: "unknown member", path: "/v1/members/me", token: getToken(t, env, ghost),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "member not authenticated"}),
		},
		{name: "ok", path: "/v1/members/me", token: getToken(t, env, m), wantCode: http.StatusOK, wantData: marchallObj(t, m)},
	}
	runHTTPTests(t, env, tests)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setup(t)

	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	env.metrics.RecordGuardCheck("offline_blocked")
	rec = env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ttr_guard_checks_total{result="offline_blocked"} 1`)
}
