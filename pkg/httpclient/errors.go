package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// StatusError is a non-2xx answer that was turned into an error before the
// caller saw the response, e.g. a 5xx counted against the breaker.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// errorEnvelope covers the error bodies downstream services send: the
// {"error":{code,message}} envelope and the bare {"detail":...} form.
type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

// ParseResponseError drains and closes a non-2xx response and maps it onto an
// AppError, keeping the downstream message when the body carries one.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", service, resp.StatusCode, err)
	}
	return MapStatus(resp.StatusCode, body, service)
}

// MapStatus translates a downstream status code and body into an error.
func MapStatus(status int, body []byte, service string) error {
	code, message := decodeErrorBody(body)
	if message == "" {
		message = http.StatusText(status)
	}
	qualified := fmt.Sprintf("%s: %s", service, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: qualified, Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status >= 500:
		return apperrors.ServiceUnavailable(qualified, &StatusError{StatusCode: status, Body: body})
	default:
		if code == "" {
			code = "DOWNSTREAM_ERROR"
		}
		return &apperrors.AppError{Code: code, Message: qualified, Status: status}
	}
}

func decodeErrorBody(body []byte) (code, message string) {
	var env errorEnvelope
	if json.Unmarshal(body, &env) != nil {
		return "", strings.TrimSpace(string(body))
	}
	if env.Error != nil {
		return env.Error.Code, env.Error.Message
	}
	if len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return "", s
		}
		return "", string(env.Detail)
	}
	return "", ""
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
