package handlers

import (
	"net/http"

	"github.com/farellandr/qrticket/internal/helpers"
	"github.com/farellandr/qrticket/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CodeIDRequest struct {
	CodeID string `json:"code_id" binding:"required"`
}

func ConsumeCode(c *gin.Context) {
	var req CodeIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Code ID is required.")
		return
	}
	codeID, err := helpers.ParseID(req.CodeID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid code ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	result, err := svc.ConsumeCode(c.Request.Context(), codeID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to redeem code.")
		return
	}

	c.JSON(http.StatusOK, result)
}

func ValidateCode(c *gin.Context) {
	var req CodeIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Code ID is required.")
		return
	}
	codeID, err := helpers.ParseID(req.CodeID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid code ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	result, err := svc.ValidateCode(c.Request.Context(), codeID)
	if err != nil {
		respondWithServiceError(c, err, "Error validating code.")
		return
	}

	c.JSON(http.StatusOK, result)
}

func GetCodeImage(c *gin.Context) {
	codeID, err := helpers.ParseID(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid code ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	png, err := svc.CodeImage(c.Request.Context(), codeID)
	if err != nil {
		respondWithServiceError(c, err, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
