package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/qrticket/internal/helpers"
	"github.com/farellandr/qrticket/internal/middleware"
	"github.com/farellandr/qrticket/internal/services"
	"github.com/gin-gonic/gin"
)

type TicketRequest struct {
	BuyerName  string  `json:"buyer_name" binding:"required"`
	BuyerEmail *string `json:"buyer_email"`
	EventName  string  `json:"event_name" binding:"required"`
	Quantity   int     `json:"quantity" binding:"required,gt=0"`
	Price      int     `json:"price" binding:"required,gt=0"`
}

type TicketIDRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
}

func CreateTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Buyer name, event name, quantity and price are required; quantity and price must be greater than 0.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	detail, err := svc.CreateTicket(c.Request.Context(), services.CreateTicketInput{
		BuyerName:  req.BuyerName,
		BuyerEmail: req.BuyerEmail,
		EventName:  req.EventName,
		Quantity:   req.Quantity,
		Price:      req.Price,
	})
	if err != nil {
		respondWithServiceError(c, err, "Failed to create ticket.")
		return
	}

	c.JSON(http.StatusCreated, detail)
}

func ListTickets(c *gin.Context) {
	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	page, limit, err := helpers.ParsePagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid page or limit.")
		return
	}

	tickets, err := svc.ListTickets(c.Request.Context(), services.ListOptions{Page: page, Limit: limit})
	if err != nil {
		respondWithServiceError(c, err, "Error retrieving tickets.")
		return
	}

	c.JSON(http.StatusOK, tickets)
}

func GetTicket(c *gin.Context) {
	ticketID, err := helpers.ParseID(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ticket ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	detail, err := svc.GetTicket(c.Request.Context(), ticketID)
	if err != nil {
		respondWithServiceError(c, err, "Error retrieving ticket.")
		return
	}

	c.JSON(http.StatusOK, detail)
}

func ValidateTicket(c *gin.Context) {
	var req TicketIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Ticket ID is required.")
		return
	}
	ticketID, err := helpers.ParseID(req.TicketID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ticket ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	result, err := svc.ValidateTicket(c.Request.Context(), ticketID)
	if err != nil {
		respondWithServiceError(c, err, "Error validating ticket.")
		return
	}

	c.JSON(http.StatusOK, result)
}

func RedeemTicket(c *gin.Context) {
	var req TicketIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Ticket ID is required.")
		return
	}
	ticketID, err := helpers.ParseID(req.TicketID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ticket ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	if err := svc.RedeemTicket(c.Request.Context(), ticketID); err != nil {
		respondWithServiceError(c, err, "Failed to redeem ticket.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Ticket redeemed successfully.",
		"ticket_id": ticketID,
	})
}

func DeleteTicket(c *gin.Context) {
	ticketID, err := helpers.ParseID(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ticket ID.")
		return
	}

	svc := middleware.GetTicketService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Ticket service not found.")
		return
	}

	if err := svc.DeleteTicket(c.Request.Context(), ticketID); err != nil {
		respondWithServiceError(c, err, "Failed to delete ticket.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket deleted successfully.",
	})
}

func respondWithServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTicketNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
	case errors.Is(err, services.ErrCodeNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Code not found.")
	case errors.Is(err, services.ErrCodeExhausted):
		helpers.RespondWithError(c, http.StatusConflict, "Code has no uses remaining.")
	case errors.Is(err, services.ErrTicketAlreadyRedeemed):
		helpers.RespondWithError(c, http.StatusConflict, "Ticket already redeemed.")
	case services.IsRetryable(err):
		helpers.RespondWithRetryableError(c, http.StatusInternalServerError, fallback)
	default:
		helpers.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
