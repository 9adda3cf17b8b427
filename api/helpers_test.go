package api_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"campus/api"
	"campus/api/openapi"
	"campus/profile"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type synchronizeCall struct {
	identityID uuid.UUID
	kind       profile.Kind
	payload    profile.Payload
}

type fakeSynchronizer struct {
	calls  []synchronizeCall
	result profile.Result
	err    error
}

func (f *fakeSynchronizer) Synchronize(ctx context.Context, identityID uuid.UUID, kind profile.Kind, payload profile.Payload) (profile.Result, error) {
	f.calls = append(f.calls, synchronizeCall{identityID: identityID, kind: kind, payload: payload})
	return f.result, f.err
}

type testEnv struct {
	router       *gin.Engine
	synchronizer *fakeSynchronizer
	privateKey   ed25519.PrivateKey
}

func setupTest(t *testing.T, opts ...api.ProfileHandlerOption) *testEnv {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	synchronizer := &fakeSynchronizer{}
	opts = append([]api.ProfileHandlerOption{api.WithHandlerLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	handler, err := api.NewProfileHandler(synchronizer, publicKey, opts...)
	require.NoError(t, err)

	router := gin.New()
	require.NoError(t, handler.RegisterRoutes(router))
	return &testEnv{router: router, synchronizer: synchronizer, privateKey: privateKey}
}

func (env *testEnv) sign(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, openapi.JWT{
		Username: "alice",
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(env.privateKey)
	require.NoError(t, err)
	return signed
}

type formFile struct {
	name string
	data []byte
}

func newFormRequest(t *testing.T, path string, fields map[string]string, file *formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		part, err := writer.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func (env *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// pngWithHeaderSize 產生標頭宣告為 w x h 的 PNG，像素資料仍然只有 1x1
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	data := buf.Bytes()
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}
