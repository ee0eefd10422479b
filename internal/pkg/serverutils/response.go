package serverutils

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func SuccessResponse[T any](message string, data T) *Response[T] {
	return &Response[T]{Success: true, Code: fiber.StatusOK, Message: message, Data: data}
}

func ErrorResponse(code int, message string) *Response[any] {
	return &Response[any]{Success: false, Code: code, Message: message}
}

// ErrorStatus maps a domain error to an HTTP status.
type ErrorStatus struct {
	Err    error
	Status int
}

// ErrorHandlerMiddleware turns handler errors into the response envelope.
// Errors matching one of mappings get that status; anything unknown is a 500.
func ErrorHandlerMiddleware(mappings ...ErrorStatus) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, message := statusOf(err, mappings)
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func statusOf(err error, mappings []ErrorStatus) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest, validationMessage(ve)
	}
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m.Status, err.Error()
		}
	}
	return fiber.StatusInternalServerError, "Internal server error"
}
