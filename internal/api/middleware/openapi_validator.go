package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"

	"lawwarden.io/warden/internal/api/openapi"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
)

// MustOpenAPIValidator creates an OpenAPI request validator and panics on setup failure.
func MustOpenAPIValidator(basePath string) gin.HandlerFunc {
	mw, err := NewOpenAPIValidator(basePath)
	if err != nil {
		panic(fmt.Sprintf("init openapi validator: %v", err))
	}
	return mw
}

// NewOpenAPIValidator rejects requests that do not match the embedded
// contract. Paths the contract does not describe pass through.
// Responses are not validated.
func NewOpenAPIValidator(basePath string) (gin.HandlerFunc, error) {
	doc, err := openapi.Load()
	if err != nil {
		return nil, err
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("create openapi router: %w", err)
	}
	basePath = normalizeBasePath(basePath)
	opts := &openapi3filter.Options{
		MultiError: true,
		// JWT and roles are checked by their own middleware.
		AuthenticationFunc: func(context.Context, *openapi3filter.AuthenticationInput) error { return nil },
	}

	return func(c *gin.Context) {
		route, pathParams, err := findRoute(router, c.Request, basePath)
		if err != nil {
			if isPathNotFound(err) {
				c.Next()
				return
			}
			abortWithAppError(c, apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			abortWithAppError(c, apperrors.BadRequest(apperrors.CodeValidationFailed, "request does not match the API contract").
				WithFieldErrors(contractFieldErrors(err)))
			return
		}
		c.Next()
	}, nil
}

func normalizeBasePath(basePath string) string {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" || basePath == "/" {
		return ""
	}
	return "/" + strings.Trim(basePath, "/")
}

func normalizeValidationPath(basePath, path string) string {
	if basePath == "" {
		if path == "" {
			return "/"
		}
		return path
	}
	if path == basePath {
		return "/"
	}
	if strings.HasPrefix(path, basePath+"/") {
		return "/" + strings.TrimPrefix(path, basePath+"/")
	}
	return path
}

// findRoute matches the request with the base path stripped, restoring the
// original URL before returning.
func findRoute(router routers.Router, req *http.Request, basePath string) (*routers.Route, map[string]string, error) {
	origPath, origRawPath := req.URL.Path, req.URL.RawPath
	defer func() {
		req.URL.Path, req.URL.RawPath = origPath, origRawPath
	}()

	req.URL.Path = normalizeValidationPath(basePath, origPath)
	if origRawPath != "" {
		req.URL.RawPath = normalizeValidationPath(basePath, origRawPath)
	}
	return router.FindRoute(req)
}

func isPathNotFound(err error) bool {
	if errors.Is(err, routers.ErrPathNotFound) {
		return true
	}
	var routeErr *routers.RouteError
	if errors.As(err, &routeErr) {
		return strings.Contains(routeErr.Reason, routers.ErrPathNotFound.Error())
	}
	return false
}

// contractFieldErrors flattens a validation failure into per-field errors.
func contractFieldErrors(err error) []apperrors.FieldError {
	var multi openapi3.MultiError
	if !errors.As(err, &multi) {
		return []apperrors.FieldError{fieldErrorFrom(err)}
	}
	out := make([]apperrors.FieldError, 0, len(multi))
	for _, e := range multi {
		out = append(out, fieldErrorFrom(e))
	}
	return out
}

func fieldErrorFrom(err error) apperrors.FieldError {
	fe := apperrors.FieldError{Code: "INVALID", Message: err.Error()}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			fe.Field = reqErr.Parameter.Name
		case reqErr.RequestBody != nil:
			fe.Field = "body"
		}
		if reqErr.Reason != "" {
			fe.Message = reqErr.Reason
		}
	}
	return fe
}

func abortWithAppError(c *gin.Context, appErr *apperrors.AppError) {
	_ = c.Error(appErr)
	c.Abort()
}
