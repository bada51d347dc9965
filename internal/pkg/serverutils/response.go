package serverutils

import (
	"errors"

	"rag-chat-be/pkg/sessionstore"

	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Code:    fiber.StatusOK,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) Response[any] {
	return Response[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// ErrorHandlerMiddleware converts errors returned by handlers into the JSON error envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			code = fiber.StatusBadRequest
		}
		message := err.Error()
		var se *sessionstore.StatusError
		if errors.As(err, &se) {
			code = se.StatusCode
			message = se.Message
		}

		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}
