package api

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"

	internalS3 "campus/adapters/s3"
	"campus/api/openapi"
	"campus/profile"
)

const (
	contextKeyToken       = "token"
	cookieKeyAccessToken  = "access_token"
	errorKeyForm          = "Form"
	errorKeyImage         = "Image"
	errorKeyLevel         = "Level"
	errorKeyDepartmentID  = "DepartmentId"
	errorDescriptionRetry = "database failure"

	// 文字欄位單一 part 的讀取上限
	maxFieldBytes = 4 << 10
	// 表單中圖片以外的部分允許的大小
	maxFormOverheadBytes = 1 << 20
	maxLevel             = 12
)

// kindRoles 定義可以編輯各種角色資料的 token 角色
var kindRoles = map[profile.Kind][]string{
	profile.KindDoctor:  {openapi.RoleDoctor},
	profile.KindTeacher: {openapi.RoleTeacher, openapi.RoleAssistant},
	profile.KindStudent: {openapi.RoleStudent},
}

// IProfileSynchronizer 是 handler 需要的同步操作
type IProfileSynchronizer interface {
	Synchronize(ctx context.Context, identityID uuid.UUID, kind profile.Kind, payload profile.Payload) (profile.Result, error)
}

type profileHandlerOptions struct {
	logger         *slog.Logger
	maxImageBytes  int64
	maxImagePixels int
}

type ProfileHandlerOption func(*profileHandlerOptions)

// WithHandlerLogger 設置日誌記錄器
func WithHandlerLogger(logger *slog.Logger) ProfileHandlerOption {
	return func(o *profileHandlerOptions) {
		o.logger = logger
	}
}

// WithMaxImageBytes 設置大頭貼檔案大小上限
func WithMaxImageBytes(maxBytes int64) ProfileHandlerOption {
	return func(o *profileHandlerOptions) {
		o.maxImageBytes = maxBytes
	}
}

// WithMaxImagePixels 設置大頭貼解碼前允許的像素數上限
func WithMaxImagePixels(maxPixels int) ProfileHandlerOption {
	return func(o *profileHandlerOptions) {
		o.maxImagePixels = maxPixels
	}
}

// ProfileHandler 實作 openapi.StrictServerInterface
type ProfileHandler struct {
	synchronizer IProfileSynchronizer
	publicKey    ed25519.PublicKey
	htmlChecker  *bluemonday.Policy
	logger       *slog.Logger
	options      profileHandlerOptions
}

func NewProfileHandler(synchronizer IProfileSynchronizer, publicKey ed25519.PublicKey, opts ...ProfileHandlerOption) (*ProfileHandler, error) {
	if synchronizer == nil {
		return nil, errors.New("synchronizer cannot be nil")
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, errors.New("invalid Ed25519 public key")
	}

	// 默認選項
	options := profileHandlerOptions{
		logger:         slog.Default(),
		maxImageBytes:  internalS3.DefaultMaxImageBytes,
		maxImagePixels: internalS3.DefaultMaxImagePixels,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	if options.maxImageBytes <= 0 {
		return nil, errors.New("max image bytes must be positive")
	}
	if options.maxImagePixels <= 0 {
		return nil, errors.New("max image pixels must be positive")
	}

	return &ProfileHandler{
		synchronizer: synchronizer,
		publicKey:    publicKey,
		htmlChecker:  bluemonday.StrictPolicy(),
		logger:       options.logger.With(slog.String("caller", "ProfileHandler")),
		options:      options,
	}, nil
}

// RegisterRoutes 註冊角色資料的路由
// 請求依序經過身份驗證、角色檢查與 OpenAPI 文件的格式驗證
func (h *ProfileHandler) RegisterRoutes(router gin.IRouter) error {
	const op = "RegisterRoutes"
	swagger, err := openapi.GetSwagger()
	if err != nil {
		return fmt.Errorf("[%s] Fail to load OpenAPI document, err=%w", op, err)
	}
	validator, err := NewRequestValidator(swagger, h.options.maxImageBytes+maxFormOverheadBytes)
	if err != nil {
		return fmt.Errorf("[%s] Fail to create request validator, err=%w", op, err)
	}
	openapi.RegisterHandlersWithOptions(router, openapi.NewStrictHandler(h, nil), openapi.GinServerOptions{
		Middlewares: []openapi.MiddlewareFunc{h.Authorize, validator},
		ErrorHandler: func(c *gin.Context, err error, statusCode int) {
			c.JSON(statusCode, openapi.ErrorResponse{Key: lo.ToPtr(errorKeyForm), ErrorDescription: err.Error()})
		},
	})
	return nil
}

// Authorize 從 Authorization header 或 cookie 取得並驗證 access token，
// 並檢查 token 是否帶有可以編輯該角色種類的角色
func (h *ProfileHandler) Authorize(c *gin.Context) {
	tokenString, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		cookie, err := c.Cookie(cookieKeyAccessToken)
		if err != nil || cookie == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tokenString = cookie
	}
	token, err := openapi.ParseAndValidateJWT(strings.TrimSpace(tokenString), h.publicKey)
	if err != nil {
		h.logger.Debug("Reject access token", slog.Any("error", err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	// 未知的種類交給格式驗證回報
	if roles, ok := kindRoles[profile.Kind(c.Param("kind"))]; ok && !token.HasAnyRole(roles...) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Set(contextKeyToken, token)
}

// Synchronize the caller's role profile
// (POST /profiles/{kind})
func (h *ProfileHandler) PostProfilesKind(ctx context.Context, request openapi.PostProfilesKindRequestObject) (openapi.PostProfilesKindResponseObject, error) {
	const op = "PostProfilesKind"
	kind, err := profile.ParseKind(string(request.Kind))
	if err != nil {
		return badRequest(errorKeyForm, err.Error()), nil
	}

	// 檢查使用者是否可以編輯
	//  - 檢查是否有通過驗證的access token
	token, ok := ctx.Value(contextKeyToken).(*openapi.JWT)
	if !ok {
		return openapi.PostProfilesKind401Response{}, nil
	}
	identityID, err := token.IdentityID()
	if err != nil {
		return openapi.PostProfilesKind401Response{}, nil
	}
	//  - 檢查角色
	if !token.HasAnyRole(kindRoles[kind]...) {
		return openapi.PostProfilesKind403Response{}, nil
	}

	// 讀取並檢查表單
	form, formErr := h.readForm(request.Body)
	if formErr != nil {
		return badRequest(formErr.key, formErr.err.Error()), nil
	}
	payload, formErr := h.toPayload(kind, form)
	if formErr != nil {
		return badRequest(formErr.key, formErr.err.Error()), nil
	}

	result, err := h.synchronizer.Synchronize(ctx, identityID, kind, payload)
	if err != nil {
		return h.errorResponse(op, err), nil
	}

	return openapi.PostProfilesKind200JSONResponse{
		UserId:    result.IdentityID,
		ProfileId: int64(result.ProfileID),
		Created:   result.Created,
		Warnings:  lo.Map(result.Warnings, func(w error, _ int) string { return w.Error() }),
	}, nil
}

func (h *ProfileHandler) errorResponse(op string, err error) openapi.PostProfilesKindResponseObject {
	var validationErr *profile.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return badRequest(validationErr.Field, validationErr.Err.Error())
	case errors.Is(err, profile.ErrTransactionFailure):
		h.logger.Warn("Synchronization failed", slog.String("op", op), slog.Any("error", err))
		return openapi.PostProfilesKind503JSONResponse{ErrorDescription: errorDescriptionRetry}
	default:
		h.logger.Error("Unexpected synchronization error", slog.String("op", op), slog.Any("error", err))
		return openapi.PostProfilesKind500JSONResponse{ErrorDescription: http.StatusText(http.StatusInternalServerError)}
	}
}

func badRequest(key, description string) openapi.PostProfilesKind400JSONResponse {
	return openapi.PostProfilesKind400JSONResponse{Key: lo.ToPtr(key), ErrorDescription: description}
}

// formError 指出是哪個表單欄位無法接受
type formError struct {
	key string
	err error
}

type profileForm struct {
	fields     map[string]string
	attachment *profile.Attachment
}

// readForm 逐一讀取 multipart 的 part，大頭貼的大小限制在讀取時就檢查
func (h *ProfileHandler) readForm(body *multipart.Reader) (profileForm, *formError) {
	form := profileForm{fields: map[string]string{}}
	if body == nil {
		return form, &formError{key: errorKeyForm, err: errors.New("multipart form is required")}
	}
	for {
		part, err := body.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			return form, &formError{key: errorKeyForm, err: err}
		}
		name := part.FormName()
		if name == "image" {
			data, err := internalS3.ReadAllLimited(part, h.options.maxImageBytes)
			part.Close()
			if err != nil {
				return form, &formError{key: errorKeyImage, err: err}
			}
			form.attachment = &profile.Attachment{Filename: part.FileName(), Data: data}
			continue
		}
		data, err := internalS3.ReadAllLimited(part, maxFieldBytes)
		part.Close()
		if err != nil {
			return form, &formError{key: errorKeyForm, err: fmt.Errorf("field %s: %w", name, err)}
		}
		form.fields[name] = string(data)
	}
}

func (h *ProfileHandler) toPayload(kind profile.Kind, form profileForm) (profile.Payload, *formError) {
	var payload profile.Payload

	// 文字欄位只接受純文字，含有 HTML 的輸入會被拒絕而不是被跳脫後存入
	textFields := []struct {
		name  string
		key   string
		value *string
	}{
		{name: "username", key: "UserName", value: &payload.Username},
		{name: "firstName", key: "FirstName", value: &payload.FirstName},
		{name: "lastName", key: "LastName", value: &payload.LastName},
		{name: "phoneNumber", key: "PhoneNumber", value: &payload.PhoneNumber},
	}
	for _, f := range textFields {
		text, ok := h.plainText(form.fields[f.name])
		if !ok {
			return payload, &formError{key: f.key, err: errors.New("must not contain markup")}
		}
		*f.value = text
	}

	departmentID, err := strconv.ParseUint(strings.TrimSpace(form.fields["departmentId"]), 10, 32)
	if err != nil || departmentID == 0 {
		return payload, &formError{key: errorKeyDepartmentID, err: errors.New("departmentId must be a positive integer")}
	}
	payload.DepartmentID = uint(departmentID)

	if kind.HasLevel() {
		level, err := strconv.Atoi(strings.TrimSpace(form.fields["level"]))
		if err != nil || level < 1 || level > maxLevel {
			return payload, &formError{key: errorKeyLevel, err: fmt.Errorf("level must be between 1 and %d", maxLevel)}
		}
		payload.Level = level
	}

	// 長度與必填欄位與資料表一致，超過時在同步前就回報
	var validationErr *profile.ValidationError
	if err := payload.Validate(); errors.As(err, &validationErr) {
		return payload, &formError{key: validationErr.Field, err: validationErr.Err}
	}

	// 只讀取標頭檢查像素數，其他圖片問題在提交後上傳時以警告回報
	if form.attachment != nil {
		var dimensionErr *internalS3.ImageDimensionError
		_, err := internalS3.CheckImageDimensions(form.attachment.Data, h.options.maxImagePixels)
		if errors.As(err, &dimensionErr) {
			return payload, &formError{key: errorKeyImage, err: err}
		}
		payload.Attachment = form.attachment
	}
	return payload, nil
}

// plainText 去除前後空白，輸入含有 HTML 標籤或實體時回傳 false
func (h *ProfileHandler) plainText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, html.UnescapeString(h.htmlChecker.Sanitize(s)) == s
}
