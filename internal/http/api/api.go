package api

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/db"
	"github.com/Nixie-Tech-LLC/branchcast/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/branchcast/internal/model"
	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

type APIError struct {
	Code    int
	Message string
	Field   string
}

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

// Status answers with a code other than 200.
type Status struct {
	Code int
	Body any
}

func Created(body any) Status { return Status{Code: http.StatusCreated, Body: body} }

// RawJSON is an already rendered body. It is served with an ETag and
// answered with 304 when the client already holds it.
type RawJSON []byte

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, apiErr := h(ctx, user)
		if apiErr != nil {
			writeError(ctx, apiErr)
			return
		}
		write(ctx, result)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		if apiErr != nil {
			writeError(ctx, apiErr)
			return
		}
		write(ctx, result)
	}
}

func write(ctx *gin.Context, result any) {
	switch r := result.(type) {
	case RawJSON:
		writeRaw(ctx, r)
	case Status:
		if r.Body == nil {
			ctx.Status(r.Code)
			return
		}
		ctx.JSON(r.Code, r.Body)
	default:
		ctx.JSON(http.StatusOK, result)
	}
}

func writeError(ctx *gin.Context, e *APIError) {
	body := gin.H{"error": e.Message}
	if e.Field != "" {
		body["field"] = e.Field
	}
	ctx.JSON(e.Code, body)
}

func writeRaw(ctx *gin.Context, body []byte) {
	tag := ETag(body)
	ctx.Header("ETag", tag)
	if matchesETag(ctx.GetHeader("If-None-Match"), tag) || matchesETag(ctx.GetHeader("X-If-None-Match"), tag) {
		ctx.Status(http.StatusNotModified)
		return
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// ETag is the strong entity tag of body.
func ETag(body []byte) string {
	sum := sha1.Sum(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func matchesETag(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == tag {
			return true
		}
	}
	return false
}

// BadRequest wraps a binding or path parameter failure.
func BadRequest(err error) *APIError {
	return &APIError{Code: http.StatusBadRequest, Message: err.Error()}
}

var duplicateFields = map[string]string{
	"users_email_key":         "email",
	"branches_code_key":       "code",
	"branches_login_user_key": "login_user",
}

// FromError maps service and store errors onto HTTP responses. Anything
// unrecognised is logged and reported as a 500.
func FromError(err error) *APIError {
	var (
		ve  *playback.ValidationError
		dup *db.DuplicateError
	)
	switch {
	case errors.As(err, &ve):
		return &APIError{Code: http.StatusUnprocessableEntity, Message: ve.Message, Field: ve.Field}
	case errors.As(err, &dup):
		return &APIError{Code: http.StatusUnprocessableEntity, Message: "has already been taken", Field: duplicateFields[dup.Constraint]}
	case errors.Is(err, playback.ErrNotFound):
		return &APIError{Code: http.StatusNotFound, Message: err.Error()}
	case errors.Is(err, db.ErrNotFound):
		return &APIError{Code: http.StatusNotFound, Message: "not found"}
	default:
		log.Error().Err(err).Msg("[api] unhandled error")
		return &APIError{Code: http.StatusInternalServerError, Message: "internal server error"}
	}
}
