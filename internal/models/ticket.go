package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketStatusValid    TicketStatus = "Valid"
	TicketStatusRedeemed TicketStatus = "Redeemed"
)

type Ticket struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	BuyerName  string          `gorm:"not null" json:"buyer_name"`
	BuyerEmail *string         `json:"buyer_email"`
	EventName  string          `gorm:"not null" json:"event_name"`
	Status     TicketStatus    `gorm:"type:varchar(16);not null;default:'Valid';index" json:"status"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Price      int             `gorm:"not null" json:"price"`
	Total      int             `gorm:"not null" json:"total"`
	Code       *RedeemableCode `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt  time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (ticket *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = TicketStatusValid
	}
	return
}

func (ticket *Ticket) IsRedeemed() bool {
	return ticket.Status == TicketStatusRedeemed
}
