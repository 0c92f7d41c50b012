package serverutils

import (
	"errors"
	"fmt"
	"strings"

	"rag-chat-be/pkg/rag"
	"rag-chat-be/pkg/rag/history"
	"rag-chat-be/pkg/rag/pipeline"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// DataError attaches a payload to an error response, such as a reply that
// was produced but could not be saved.
type DataError struct {
	Err  error
	Data interface{}
}

func (e *DataError) Error() string { return e.Err.Error() }
func (e *DataError) Unwrap() error { return e.Err }

func WithData(err error, data interface{}) error {
	return &DataError{Err: err, Data: data}
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		code, message := StatusFor(err)

		var data interface{}
		var de *DataError
		if errors.As(err, &de) {
			data = de.Data
		}

		return c.Status(code).JSON(ErrorResponseWithData(code, message, data))
	}
}

// StatusFor maps an error to its HTTP status and client-facing message.
func StatusFor(err error) (int, string) {
	var fe *fiber.Error
	var ve validator.ValidationErrors

	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, validationMessage(ve)
	case errors.Is(err, pipeline.ErrEmptyMessage):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, history.ErrSessionNotFound):
		return fiber.StatusNotFound, "Session not found"
	case errors.Is(err, history.ErrSessionExists):
		return fiber.StatusConflict, "Session already exists"
	case rag.IsKind(err, rag.KindCompletion):
		return fiber.StatusBadGateway, "The language model did not produce a response"
	case rag.IsKind(err, rag.KindPersistence):
		return fiber.StatusInternalServerError, "The response could not be saved to history"
	default:
		return fiber.StatusInternalServerError, "Internal server error"
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}
