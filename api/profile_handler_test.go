package api_test

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/api"
	"campus/api/openapi"
	"campus/profile"
)

func TestNewProfileHandler(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = api.NewProfileHandler(nil, publicKey)
	assert.Error(t, err)

	_, err = api.NewProfileHandler(&fakeSynchronizer{}, ed25519.PublicKey("short"))
	assert.Error(t, err)

	_, err = api.NewProfileHandler(&fakeSynchronizer{}, publicKey, api.WithMaxImageBytes(0))
	assert.Error(t, err)

	_, err = api.NewProfileHandler(&fakeSynchronizer{}, publicKey, api.WithMaxImagePixels(0))
	assert.Error(t, err)

	handler, err := api.NewProfileHandler(&fakeSynchronizer{}, publicKey)
	assert.NoError(t, err)
	assert.NotNil(t, handler)
}

func TestProfileHandler_Authorization(t *testing.T) {
	identityID := uuid.New()
	fields := map[string]string{"username": "alice", "departmentId": "1", "level": "2"}

	tests := []struct {
		name     string
		path     string
		token    func(env *testEnv) string
		cookie   bool
		wantCode int
	}{
		{
			name:     "missing token",
			path:     "/profiles/doctor",
			token:    func(env *testEnv) string { return "" },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "garbage token",
			path:     "/profiles/doctor",
			token:    func(env *testEnv) string { return "not-a-jwt" },
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "token signed by another key",
			path: "/profiles/doctor",
			token: func(env *testEnv) string {
				other := setupTest(t)
				return other.sign(t, identityID.String(), openapi.RoleDoctor)
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong role",
			path:     "/profiles/doctor",
			token:    func(env *testEnv) string { return env.sign(t, identityID.String(), openapi.RoleStudent) },
			wantCode: http.StatusForbidden,
		},
		{
			name:     "subject is not an identity id",
			path:     "/profiles/doctor",
			token:    func(env *testEnv) string { return env.sign(t, "alice", openapi.RoleDoctor) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown kind",
			path:     "/profiles/nurse",
			token:    func(env *testEnv) string { return env.sign(t, identityID.String(), openapi.RoleDoctor) },
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "doctor",
			path:     "/profiles/doctor",
			token:    func(env *testEnv) string { return env.sign(t, identityID.String(), openapi.RoleDoctor) },
			wantCode: http.StatusOK,
		},
		{
			name:     "assistant may edit teacher profile",
			path:     "/profiles/teacher",
			token:    func(env *testEnv) string { return env.sign(t, identityID.String(), openapi.RoleAssistant) },
			wantCode: http.StatusOK,
		},
		{
			name:     "token from cookie",
			path:     "/profiles/student",
			token:    func(env *testEnv) string { return env.sign(t, identityID.String(), openapi.RoleStudent) },
			cookie:   true,
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTest(t)
			req := newFormRequest(t, tt.path, fields, nil)
			if token := tt.token(env); token != "" {
				if tt.cookie {
					req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
				} else {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}

			w := env.serve(req)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				assert.Empty(t, env.synchronizer.calls)
			}
		})
	}
}

func TestProfileHandler_Synchronize(t *testing.T) {
	identityID := uuid.New()

	t.Run("passes trimmed payload", func(t *testing.T) {
		env := setupTest(t)
		env.synchronizer.result = profile.Result{IdentityID: identityID, ProfileID: 7, Created: true}

		req := newFormRequest(t, "/profiles/student", map[string]string{
			"username":     "  alice ",
			"firstName":    "Alice",
			"lastName":     "Liddell",
			"phoneNumber":  "0912",
			"departmentId": "3",
			"level":        "2",
		}, &formFile{name: "me.png", data: []byte("png-bytes")})
		req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleStudent))

		w := env.serve(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		require.Len(t, env.synchronizer.calls, 1)
		call := env.synchronizer.calls[0]
		assert.Equal(t, identityID, call.identityID)
		assert.Equal(t, profile.KindStudent, call.kind)
		assert.Equal(t, "alice", call.payload.Username)
		assert.Equal(t, "Alice", call.payload.FirstName)
		assert.Equal(t, "Liddell", call.payload.LastName)
		assert.Equal(t, "0912", call.payload.PhoneNumber)
		assert.Equal(t, uint(3), call.payload.DepartmentID)
		assert.Equal(t, 2, call.payload.Level)
		require.NotNil(t, call.payload.Attachment)
		assert.Equal(t, "me.png", call.payload.Attachment.Filename)
		assert.Equal(t, []byte("png-bytes"), call.payload.Attachment.Data)

		var resp openapi.SynchronizeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, openapi.SynchronizeResponse{UserId: identityID, ProfileId: 7, Created: true, Warnings: []string{}}, resp)
	})

	t.Run("plain text is stored unescaped", func(t *testing.T) {
		tests := []struct {
			name  string
			field string
			value string
			got   func(p profile.Payload) string
		}{
			{name: "ampersand in username", field: "username", value: "tom&jerry", got: func(p profile.Payload) string { return p.Username }},
			{name: "apostrophe in last name", field: "lastName", value: "O'Brien", got: func(p profile.Payload) string { return p.LastName }},
			{name: "quote in first name", field: "firstName", value: `Al "Bo" Chen`, got: func(p profile.Payload) string { return p.FirstName }},
			{name: "comparison in first name", field: "firstName", value: "a < b", got: func(p profile.Payload) string { return p.FirstName }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := setupTest(t)
				fields := map[string]string{"username": "alice", "departmentId": "1"}
				fields[tt.field] = tt.value
				req := newFormRequest(t, "/profiles/doctor", fields, nil)
				req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleDoctor))

				w := env.serve(req)
				require.Equal(t, http.StatusOK, w.Code, w.Body.String())
				require.Len(t, env.synchronizer.calls, 1)
				assert.Equal(t, tt.value, tt.got(env.synchronizer.calls[0].payload))
			})
		}
	})

	t.Run("warnings are reported", func(t *testing.T) {
		env := setupTest(t)
		env.synchronizer.result = profile.Result{
			IdentityID: identityID,
			ProfileID:  7,
			Warnings:   []error{&profile.Warning{Kind: profile.ErrUploadWarning, Err: errors.New("bucket unavailable")}},
		}

		req := newFormRequest(t, "/profiles/doctor", map[string]string{"username": "alice", "departmentId": "1"}, nil)
		req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleDoctor))

		w := env.serve(req)
		require.Equal(t, http.StatusOK, w.Code)
		var resp openapi.SynchronizeResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "bucket unavailable")
		assert.Nil(t, env.synchronizer.calls[0].payload.Attachment)
	})

	t.Run("form errors", func(t *testing.T) {
		tests := []struct {
			name    string
			path    string
			role    string
			fields  map[string]string
			wantKey string
		}{
			{name: "missing username", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"departmentId": "1"}, wantKey: "UserName"},
			{name: "blank username", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "   ", "departmentId": "1"}, wantKey: "UserName"},
			{name: "username only markup", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "<script></script>", "departmentId": "1"}, wantKey: "UserName"},
			{name: "first name with markup", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "alice", "firstName": "<b>Alice</b>", "departmentId": "1"}, wantKey: "FirstName"},
			{name: "html entity in last name", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "alice", "lastName": "O&#39;Brien", "departmentId": "1"}, wantKey: "LastName"},
			{name: "first name longer than column", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "alice", "firstName": strings.Repeat("a", 60), "departmentId": "1"}, wantKey: "FirstName"},
			{name: "phone number longer than column", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": "alice", "phoneNumber": strings.Repeat("9", 33), "departmentId": "1"}, wantKey: "PhoneNumber"},
			{name: "username longer than column", path: "/profiles/doctor", role: openapi.RoleDoctor, fields: map[string]string{"username": strings.Repeat("a", 257), "departmentId": "1"}, wantKey: "UserName"},
			{name: "missing department", path: "/profiles/teacher", role: openapi.RoleTeacher, fields: map[string]string{"username": "alice"}, wantKey: "DepartmentId"},
			{name: "department is not a number", path: "/profiles/teacher", role: openapi.RoleTeacher, fields: map[string]string{"username": "alice", "departmentId": "cs"}, wantKey: "DepartmentId"},
			{name: "student without level", path: "/profiles/student", role: openapi.RoleStudent, fields: map[string]string{"username": "alice", "departmentId": "1"}, wantKey: "Level"},
			{name: "student level out of range", path: "/profiles/student", role: openapi.RoleStudent, fields: map[string]string{"username": "alice", "departmentId": "1", "level": "13"}, wantKey: "Level"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := setupTest(t)
				req := newFormRequest(t, tt.path, tt.fields, nil)
				req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), tt.role))

				w := env.serve(req)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				var resp openapi.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantKey, lo.FromPtr(resp.Key), resp.ErrorDescription)
				assert.Empty(t, env.synchronizer.calls)
			})
		}
	})

	t.Run("image errors", func(t *testing.T) {
		tests := []struct {
			name string
			opts []api.ProfileHandlerOption
			file *formFile
		}{
			{name: "image too large", opts: []api.ProfileHandlerOption{api.WithMaxImageBytes(8)}, file: &formFile{name: "big.png", data: make([]byte, 64)}},
			{name: "too many pixels", opts: []api.ProfileHandlerOption{api.WithMaxImagePixels(100)}, file: &formFile{name: "wide.png", data: pngWithHeaderSize(t, 20, 20)}},
			{name: "huge header", file: &formFile{name: "bomb.png", data: pngWithHeaderSize(t, 100000, 100000)}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := setupTest(t, tt.opts...)
				req := newFormRequest(t, "/profiles/doctor", map[string]string{"username": "alice", "departmentId": "1"}, tt.file)
				req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleDoctor))

				w := env.serve(req)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				var resp openapi.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "Image", lo.FromPtr(resp.Key), resp.ErrorDescription)
				assert.Empty(t, env.synchronizer.calls)
			})
		}
	})

	t.Run("request body over the form limit", func(t *testing.T) {
		env := setupTest(t, api.WithMaxImageBytes(8))
		req := newFormRequest(t, "/profiles/doctor", map[string]string{"username": "alice", "departmentId": "1"}, &formFile{name: "big.png", data: make([]byte, 2<<20)})
		req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleDoctor))

		w := env.serve(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp openapi.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Image", lo.FromPtr(resp.Key))
		assert.Empty(t, env.synchronizer.calls)
	})
}

func TestProfileHandler_ErrorMapping(t *testing.T) {
	identityID := uuid.New()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
		wantDesc string
	}{
		{
			name:     "identity not found",
			err:      &profile.ValidationError{Field: "Id", Err: profile.ErrIdentityNotFound},
			wantCode: http.StatusBadRequest,
			wantKey:  "Id",
			wantDesc: profile.ErrIdentityNotFound.Error(),
		},
		{
			name:     "username conflict",
			err:      &profile.ValidationError{Field: "UserName", Err: profile.ErrUsernameConflict},
			wantCode: http.StatusBadRequest,
			wantKey:  "UserName",
			wantDesc: profile.ErrUsernameConflict.Error(),
		},
		{
			name:     "department not found",
			err:      &profile.ValidationError{Field: "DepartmentId", Err: profile.ErrDepartmentNotFound},
			wantCode: http.StatusBadRequest,
			wantKey:  "DepartmentId",
			wantDesc: profile.ErrDepartmentNotFound.Error(),
		},
		{
			name:     "transaction failure",
			err:      &profile.TransactionError{Op: "commit", Err: errors.New("connection reset")},
			wantCode: http.StatusServiceUnavailable,
			wantDesc: "database failure",
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantDesc: http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTest(t)
			env.synchronizer.err = tt.err

			req := newFormRequest(t, "/profiles/teacher", map[string]string{"username": "alice", "departmentId": "1"}, nil)
			req.Header.Set("Authorization", "Bearer "+env.sign(t, identityID.String(), openapi.RoleTeacher))

			w := env.serve(req)
			assert.Equal(t, tt.wantCode, w.Code)
			var resp openapi.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), fmt.Sprintf("body=%s", w.Body.String()))
			assert.Equal(t, tt.wantKey, lo.FromPtr(resp.Key))
			assert.Equal(t, tt.wantDesc, resp.ErrorDescription)
		})
	}
}
