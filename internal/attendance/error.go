package attendance

import (
	"errors"
	"fmt"
	"net/http"
)

// ===== Error model (geofence と同型) =====
type Code string

const (
	CodeAlreadyCheckedIn  Code = "ALREADY_CHECKED_IN"
	CodeAlreadyCheckedOut Code = "ALREADY_CHECKED_OUT"
	CodeNotCheckedIn      Code = "NOT_CHECKED_IN"
	CodeInvalidCoordinate Code = "INVALID_COORDINATE"
	CodeInvalidInterval   Code = "INVALID_INTERVAL"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeInternal          Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Is: Code が同じなら同一エラーとして扱う（errors.Is(err, ErrAlreadyCheckedIn) 用）
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// 状態遷移違反・入力不整合
var (
	ErrAlreadyCheckedIn  = &APIError{Code: CodeAlreadyCheckedIn, Message: "already checked in today"}
	ErrAlreadyCheckedOut = &APIError{Code: CodeAlreadyCheckedOut, Message: "already checked out today"}
	ErrNotCheckedIn      = &APIError{Code: CodeNotCheckedIn, Message: "no check-in found for today"}
	ErrInvalidCoordinate = &APIError{Code: CodeInvalidCoordinate, Message: "latitude must be in [-90,90] and longitude in [-180,180]"}
	ErrInvalidInterval   = &APIError{Code: CodeInvalidInterval, Message: "check-out time precedes check-in time"}
	ErrSessionNotFound   = &APIError{Code: CodeNotFound, Message: "attendance session not found"}
)

func ErrInvalid(msg string) *APIError     { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrUnavailable(msg string) *APIError { return &APIError{Code: CodeUnavailable, Message: msg} }
func ErrInternal(msg string) *APIError    { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeInvalidCoordinate, CodeInvalidInterval:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeNotFound:
			return http.StatusNotFound
		case CodeAlreadyCheckedIn, CodeAlreadyCheckedOut, CodeNotCheckedIn:
			return http.StatusConflict
		case CodeUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

func errorFromErr(err error) errorDTO {
	var api *APIError
	if errors.As(err, &api) {
		return errorBody(api.Code, api.Message)
	}
	return errorBody(CodeInternal, "internal error")
}
