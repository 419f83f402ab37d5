package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/royalacademy/backoffice/apps/api/echo"
	"github.com/royalacademy/backoffice/core/session"
	"github.com/royalacademy/backoffice/core/teacher"
)

func Test_sessionApi_login(t *testing.T) {
	d := setup(t)
	_, creds, err := d.teachers.Create(context.Background(), teacher.NewTeacher{
		Name: "Jane Doe", Email: "jane@royalacademy.local", Subject: "Maths", Class: "10", Section: "A",
	})
	require.NoError(t, err)

	login := func(role, username, password string) []byte {
		return marchallObj(t, LoginRequest{Role: role, Username: username, Password: password})
	}
	const path = "/v1/session/login"

	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: path, body: login(session.RolePrincipal, "", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown role", method: http.MethodPost, path: path, body: login("janitor", "x", "y"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": session.ErrUnknownRole.Error()}),
		},
		{
			name: "wrong principal password", method: http.MethodPost, path: path, body: login(session.RolePrincipal, principalEmail, "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong teacher password", method: http.MethodPost, path: path, body: login(session.RoleTeacher, creds.Username, "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{name: "teacher", method: http.MethodPost, path: path, body: login(session.RoleTeacher, creds.Username, creds.Password), wantCode: http.StatusOK},
		{name: "principal", method: http.MethodPost, path: path, body: login(session.RolePrincipal, principalEmail, principalPassword), wantCode: http.StatusOK},
	}
	runHTTPTests(t, d.app, tests)

	rec := do(d.app, http.MethodGet, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)
	var flags session.Flags
	unmarchall(t, rec, &flags)
	assert.True(t, flags.PrincipalAuth)
	assert.False(t, flags.TeacherAuth)
	assert.Equal(t, principalEmail, flags.Email)
}

func Test_sessionApi_bannedTeacher(t *testing.T) {
	d := setup(t)
	tch, creds, err := d.teachers.Create(context.Background(), teacher.NewTeacher{
		Name: "Jane Doe", Email: "jane@royalacademy.local", Subject: "Maths", Class: "10", Section: "A",
	})
	require.NoError(t, err)
	_, err = d.teachers.ToggleBan(context.Background(), tch.ID)
	require.NoError(t, err)

	rec := do(d.app, http.MethodPost, "/v1/session/login",
		marchallObj(t, LoginRequest{Role: session.RoleTeacher, Username: creds.Username, Password: creds.Password}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account banned"})}, rec)
}

func Test_sessionApi_logout(t *testing.T) {
	d := setup(t)

	rec := do(d.app, http.MethodGet, "/v1/session")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errLoggedOut)}, rec)

	loginAsPrincipal(t, d.app)
	assert.Equal(t, http.StatusOK, do(d.app, http.MethodGet, "/v1/teachers").Code)

	rec = do(d.app, http.MethodPost, "/v1/session/logout")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(d.app, http.MethodGet, "/v1/teachers")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errLoggedOut)}, rec)

	// logging out twice is fine
	assert.Equal(t, http.StatusNoContent, do(d.app, http.MethodPost, "/v1/session/logout").Code)
}
