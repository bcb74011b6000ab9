package handlers

import (
	"net/http"

	"towing-system/internal/apperror"
	"towing-system/internal/logger"
)

// writeServiceError отдает клиенту сообщение самой типизированной ошибки без префиксов обертки,
// остальные ошибки логируются и скрываются за internalMessage
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	if appErr, ok := apperror.As(err); ok {
		if status := appErr.Kind.HTTPStatus(); status != http.StatusInternalServerError {
			writeErrorResponse(w, status, appErr.Error())
			return
		}
	}

	if log != nil {
		log.WithError(err).Error(internalMessage)
	}
	writeErrorResponse(w, http.StatusInternalServerError, internalMessage)
}
