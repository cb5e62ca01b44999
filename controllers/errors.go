package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental-backend/services"
	"rental-backend/utils"
)

// respondServiceError translates ledger errors into distinct HTTP
// classes: validation and bad transitions are 400, authorization is 403,
// missing resources are 404, overlap and duplicate review are 409.
// Anything else is a 500 with the detail kept server-side.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.JSONError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		utils.JSONError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.JSONError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrOverlap):
		utils.JSONError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrAlreadyReviewed):
		utils.JSONError(c, http.StatusConflict, err.Error())
	default:
		log.Printf("❌ internal error: %v", err)
		utils.JSONError(c, http.StatusInternalServerError, "internal error")
	}
}
