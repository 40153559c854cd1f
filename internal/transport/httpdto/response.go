package httpdto

import ledger_errors "hoa-ledger/pkg/errors"

type Response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// ErrorResponseFrom renders a ledger error: its reason code, a message safe
// for clients and whether resubmitting the identical request may succeed.
func ErrorResponseFrom(err error) Response[any] {
	resp := NewErrorResponse(ledger_errors.PublicMessage(err), ledger_errors.ReasonCode(err))
	resp.Retryable = ledger_errors.Retryable(err)
	return resp
}
