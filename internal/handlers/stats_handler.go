package handlers

import (
	"net/http"

	"github.com/farellandr/qrticket/internal/helpers"
	"github.com/farellandr/qrticket/internal/middleware"
	"github.com/gin-gonic/gin"
)

func GetStats(c *gin.Context) {
	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	stats, err := svc.Stats(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, err, "Error retrieving statistics.")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func GetCodeStats(c *gin.Context) {
	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	stats, err := svc.CodeStats(c.Request.Context())
	if err != nil {
		respondWithServiceError(c, err, "Error retrieving code statistics.")
		return
	}

	c.JSON(http.StatusOK, stats)
}
