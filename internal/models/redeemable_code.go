package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RedeemableCode is the scannable credential of a ticket. UsesRemaining starts
// at the ticket quantity and only ever decreases.
type RedeemableCode struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TicketID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"ticket_id"`
	UsesRemaining int       `gorm:"not null;check:chk_redeemable_codes_uses_remaining,uses_remaining >= 0" json:"uses_remaining"`
	Redeemed      bool      `gorm:"not null;default:false" json:"redeemed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (code *RedeemableCode) BeforeCreate(tx *gorm.DB) (err error) {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	return
}

func (code *RedeemableCode) IsExhausted() bool {
	return code.UsesRemaining <= 0
}
