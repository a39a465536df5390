package middleware

import (
	"github.com/farellandr/qrticket/internal/services"
	"github.com/gin-gonic/gin"
)

const ticketServiceKey = "ticket_service"

func TicketServiceMiddleware(svc *services.TicketService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ticketServiceKey, svc)
		c.Next()
	}
}

func GetTicketService(c *gin.Context) *services.TicketService {
	svc, exists := c.Get(ticketServiceKey)
	if !exists {
		return nil
	}
	return svc.(*services.TicketService)
}
