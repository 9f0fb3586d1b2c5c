package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/engine"
	"tabula/internal/store"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func ferr(code, field, message string) FieldError {
	return FieldError{Code: code, Field: field, Message: message}
}

const errPartialCompletion = "partial_completion"

// respondError мапит ошибки ядра/стора в статус и единый payload
// {"errors":[{code,field,message}]}.
func respondError(c *gin.Context, err error) {
	if ve, ok := engine.IsValidation(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"errors": []FieldError{ferr(engine.ErrCodeValidation, ve.Field, ve.Message)},
		})
		return
	}
	if pe, ok := engine.IsPrecondition(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errors": []FieldError{ferr(engine.ErrCodePrecondition, "", pe.Message)},
		})
		return
	}
	var pce *engine.PartialCompletionError
	if errors.As(err, &pce) {
		// часть батчей уже закоммичена; клиент сверяется повторным запросом
		c.JSON(http.StatusInternalServerError, gin.H{
			"errors": []FieldError{ferr(errPartialCompletion, "", pce.Error())},
		})
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"errors": []FieldError{ferr(engine.ErrCodeNotFound, "", "record not found")},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"errors": []FieldError{ferr(engine.ErrCodeInfrastructure, "", err.Error())},
	})
}

func badRequest(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"errors": []FieldError{ferr(engine.ErrCodeValidation, field, message)},
	})
}
