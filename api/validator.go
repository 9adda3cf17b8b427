package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	internalS3 "campus/adapters/s3"
	"campus/api/openapi"
)

// 表單欄位名稱對應回應中的錯誤 key
var formFieldKeys = map[string]string{
	"username":     "UserName",
	"firstName":    "FirstName",
	"lastName":     "LastName",
	"phoneNumber":  "PhoneNumber",
	"departmentId": errorKeyDepartmentID,
	"level":        errorKeyLevel,
	"image":        errorKeyImage,
}

var registerImageDecoders sync.Once

// NewRequestValidator 建立依照 OpenAPI 文件檢查請求的 middleware，
// 請求本文超過 maxBodyBytes 時直接拒絕
func NewRequestValidator(swagger *openapi3.T, maxBodyBytes int64) (openapi.MiddlewareFunc, error) {
	const op = "NewRequestValidator"
	if maxBodyBytes <= 0 {
		return nil, fmt.Errorf("[%s] max body bytes must be positive", op)
	}

	// 只比對路徑，不比對 host
	swagger.Servers = nil
	router, err := legacyrouter.NewRouter(swagger)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create router, err=%w", op, err)
	}

	// 大頭貼的 part 以實際的圖片 MIME type 上傳
	registerImageDecoders.Do(func() {
		for mimeType := range internalS3.SecureMIMETypesExtension {
			openapi3filter.RegisterBodyDecoder(mimeType, openapi3filter.FileBodyDecoder)
		}
	})

	options := &openapi3filter.Options{
		// 身份驗證由 Authorize 處理
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBodyBytes {
			abortBadRequest(c, errorKeyImage, "request body is too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			abortBadRequest(c, errorKeyForm, err.Error())
			return
		}
		err = openapi3filter.ValidateRequest(c.Request.Context(), &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    options,
		})
		if err != nil {
			abortBadRequest(c, requestErrorKey(err), err.Error())
			return
		}
	}, nil
}

// requestErrorKey 找出驗證錯誤所屬的表單欄位
func requestErrorKey(err error) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errorKeyImage
	}

	var path []string
	var schemaErr *openapi3.SchemaError
	var parseErr *openapi3filter.ParseError
	switch {
	case errors.As(err, &schemaErr):
		path = schemaErr.JSONPointer()
	case errors.As(err, &parseErr):
		path = lo.Map(parseErr.Path(), func(p any, _ int) string { return fmt.Sprint(p) })
	}

	var requestErr *openapi3filter.RequestError
	if len(path) == 0 || (errors.As(err, &requestErr) && requestErr.Parameter != nil) {
		return errorKeyForm
	}
	if key, ok := formFieldKeys[path[0]]; ok {
		return key
	}
	return errorKeyForm
}

func abortBadRequest(c *gin.Context, key, description string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, openapi.ErrorResponse{Key: lo.ToPtr(key), ErrorDescription: description})
}
