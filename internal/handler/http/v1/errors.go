package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/dispatch_coordination_system/internal/models"
)

// statusFor сопоставляет доменную ошибку с HTTP-статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrPreconditionFailed),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrMissingReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ответ с ошибкой. Клиентские ошибки отдаются с текстом,
// чтобы оператор видел, какое условие не выполнено.
func respondError(c *gin.Context, log *logrus.Entry, err error, msg string) {
	status := statusFor(err)
	body := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.WithError(err).Error(msg)
		body = "internal server error"
	case http.StatusServiceUnavailable:
		log.WithError(err).Error(msg)
		body = "store unavailable, retry later"
	default:
		log.WithError(err).Warn(msg)
	}
	c.JSON(status, gin.H{"error": body})
}

func badQuery(key, value string) error {
	return fmt.Errorf("%w: invalid query parameter %s=%q", models.ErrValidation, key, value)
}
