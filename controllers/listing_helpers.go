package controllers

import (
	"errors"

	apperrors "listing-service/common/errors"
	"listing-service/common/logger"
	"listing-service/repository"
	"listing-service/services"

	"github.com/gin-gonic/gin"
)

// handleServiceError maps service errors to HTTP responses.
func handleServiceError(c *gin.Context, err error, notFoundMsg string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		apperrors.Respond(c, apperrors.BadRequest(verr.Message))
	case errors.Is(err, repository.ErrNotFound):
		apperrors.Respond(c, apperrors.NotFound(notFoundMsg))
	case errors.Is(err, repository.ErrVersionConflict):
		logger.Warn(c, "Listing store conflict persisted after retries")
		apperrors.Respond(c, apperrors.Conflict("Listings were modified concurrently, please retry"))
	default:
		logger.Error(c, "Service error", err)
		apperrors.Respond(c, apperrors.Internal("Internal server error", err))
	}
}
