package store

import (
	"context"

	"github.com/farellandr/qrticket/internal/models"
)

// TicketStats aggregates every stored ticket. TotalFunds and TotalPeople count
// Valid and Redeemed tickets alike, so PendingFunds = TotalFunds - RedeemedFunds
// is the money of tickets still Valid and never goes negative.
type TicketStats struct {
	TotalTickets    int64 `json:"total_tickets"`
	ValidTickets    int64 `json:"valid_tickets"`
	RedeemedTickets int64 `json:"redeemed_tickets"`
	TotalFunds      int64 `json:"total_funds"`
	TotalPeople     int64 `json:"total_people"`
	RedeemedFunds   int64 `json:"redeemed_funds"`
	RedeemedPeople  int64 `json:"redeemed_people"`
	PendingFunds    int64 `json:"pending_funds"`
	PendingPeople   int64 `json:"pending_people"`
}

type CodeStats struct {
	TotalCodes         int64 `json:"total_codes"`
	TotalUsesRemaining int64 `json:"total_uses_remaining"`
	ActiveCodes        int64 `json:"active_codes"`
	FullyUsedCodes     int64 `json:"fully_used_codes"`
}

func (s *Store) TicketStats(ctx context.Context) (*TicketStats, error) {
	defer observe("ticket_stats")()

	var stats TicketStats
	err := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Select(`COUNT(*) AS total_tickets,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS valid_tickets,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS redeemed_tickets,
			COALESCE(SUM(total), 0) AS total_funds,
			COALESCE(SUM(quantity), 0) AS total_people,
			COALESCE(SUM(CASE WHEN status = ? THEN total ELSE 0 END), 0) AS redeemed_funds,
			COALESCE(SUM(CASE WHEN status = ? THEN quantity ELSE 0 END), 0) AS redeemed_people`,
			models.TicketStatusValid,
			models.TicketStatusRedeemed,
			models.TicketStatusRedeemed,
			models.TicketStatusRedeemed,
		).
		Row().
		Scan(
			&stats.TotalTickets,
			&stats.ValidTickets,
			&stats.RedeemedTickets,
			&stats.TotalFunds,
			&stats.TotalPeople,
			&stats.RedeemedFunds,
			&stats.RedeemedPeople,
		)
	if err != nil {
		return nil, err
	}

	stats.PendingFunds = stats.TotalFunds - stats.RedeemedFunds
	stats.PendingPeople = stats.TotalPeople - stats.RedeemedPeople
	return &stats, nil
}

func (s *Store) CodeStats(ctx context.Context) (*CodeStats, error) {
	defer observe("code_stats")()

	var stats CodeStats
	err := s.db.WithContext(ctx).Model(&models.RedeemableCode{}).
		Select(`COUNT(*) AS total_codes,
			COALESCE(SUM(uses_remaining), 0) AS total_uses_remaining,
			COALESCE(SUM(CASE WHEN uses_remaining > 0 THEN 1 ELSE 0 END), 0) AS active_codes,
			COALESCE(SUM(CASE WHEN uses_remaining = 0 THEN 1 ELSE 0 END), 0) AS fully_used_codes`).
		Row().
		Scan(
			&stats.TotalCodes,
			&stats.TotalUsesRemaining,
			&stats.ActiveCodes,
			&stats.FullyUsedCodes,
		)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
