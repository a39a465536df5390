package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/farellandr/qrticket/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), Options{MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTicket(t *testing.T, s *Store, quantity, price int) (*models.Ticket, *models.RedeemableCode) {
	t.Helper()

	ticket := &models.Ticket{
		BuyerName: "Ana",
		EventName: "Concert",
		Quantity:  quantity,
		Price:     price,
		Total:     quantity * price,
	}
	code := &models.RedeemableCode{UsesRemaining: quantity}
	require.NoError(t, s.CreateTicketWithCode(context.Background(), ticket, code))
	return ticket, code
}

func TestCreateTicketWithCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, code := seedTicket(t, s, 2, 500)

	assert.NotEqual(t, uuid.Nil, ticket.ID)
	assert.NotEqual(t, uuid.Nil, code.ID)
	assert.Equal(t, ticket.ID, code.TicketID)
	assert.Equal(t, models.TicketStatusValid, ticket.Status)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Total)
	require.NotNil(t, got.Code)
	assert.Equal(t, code.ID, got.Code.ID)
	assert.Equal(t, 2, got.Code.UsesRemaining)
	assert.False(t, got.Code.Redeemed)
}

func TestCreateTicketWithCode_RollsBackTicketWhenCodeFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, existing := seedTicket(t, s, 1, 100)

	orphan := &models.Ticket{BuyerName: "Bo", EventName: "Concert", Quantity: 1, Price: 100, Total: 100}
	duplicate := &models.RedeemableCode{ID: existing.ID, UsesRemaining: 1}

	err := s.CreateTicketWithCode(ctx, orphan, duplicate)
	require.Error(t, err)

	_, err = s.GetTicket(ctx, orphan.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	tickets, err := s.ListTickets(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestConsumeUse_DrainsToZeroThenExhausted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, code := seedTicket(t, s, 3, 100)

	for want := 2; want >= 0; want-- {
		remaining, err := s.ConsumeUse(ctx, code.ID)
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	_, err := s.ConsumeUse(ctx, code.ID)
	assert.ErrorIs(t, err, ErrExhausted)

	got, err := s.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsesRemaining)
	assert.True(t, got.Redeemed)
}

func TestConsumeUse_RedeemedFlagOnlyAtZero(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, code := seedTicket(t, s, 2, 100)

	_, err := s.ConsumeUse(ctx, code.ID)
	require.NoError(t, err)

	got, err := s.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsesRemaining)
	assert.False(t, got.Redeemed)
}

func TestConsumeUse_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ConsumeUse(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeUse_ConcurrentCallersOnLastUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, code := seedTicket(t, s, 1, 100)

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
		others    []error
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ConsumeUse(ctx, code.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrExhausted):
				exhausted++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, exhausted)

	got, err := s.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsesRemaining)
}

func TestUsesRemainingCheckConstraint(t *testing.T) {
	s := newTestStore(t)

	_, code := seedTicket(t, s, 1, 100)

	err := s.db.Model(&models.RedeemableCode{}).
		Where("id = ?", code.ID).
		Update("uses_remaining", -1).Error
	assert.Error(t, err)
}

func TestRedeemTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, code := seedTicket(t, s, 2, 500)

	require.NoError(t, s.RedeemTicket(ctx, ticket.ID))
	assert.ErrorIs(t, s.RedeemTicket(ctx, ticket.ID), ErrAlreadyRedeemed)
	assert.ErrorIs(t, s.RedeemTicket(ctx, uuid.New()), ErrNotFound)

	got, err := s.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusRedeemed, got.Status)
	// whole-ticket redemption leaves the code counter alone
	assert.Equal(t, code.UsesRemaining, got.Code.UsesRemaining)
}

func TestDeleteTicket_RemovesCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ticket, code := seedTicket(t, s, 2, 500)

	require.NoError(t, s.DeleteTicket(ctx, ticket.ID))

	_, err := s.GetTicket(ctx, ticket.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCode(ctx, code.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteTicket(ctx, ticket.ID), ErrNotFound)
}

func TestListTickets_NewestFirstWithPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, _ := seedTicket(t, s, 1, 100)
	second, _ := seedTicket(t, s, 1, 100)
	third, _ := seedTicket(t, s, 1, 100)

	all, err := s.ListTickets(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

	page, err := s.ListTickets(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestListTickets_EqualTimestampsOrderByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createdAt := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		ticket := &models.Ticket{
			BuyerName: "Ana",
			EventName: "Concert",
			Quantity:  1,
			Price:     100,
			Total:     100,
			CreatedAt: createdAt,
		}
		require.NoError(t, s.CreateTicketWithCode(ctx, ticket, &models.RedeemableCode{UsesRemaining: 1}))
		ids = append(ids, ticket.ID.String())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	for attempt := 0; attempt < 3; attempt++ {
		tickets, err := s.ListTickets(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, tickets, len(ids))

		got := make([]string, 0, len(tickets))
		for _, ticket := range tickets {
			got = append(got, ticket.ID.String())
		}
		assert.Equal(t, ids, got)
	}
}

func TestTicketStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.TicketStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, TicketStats{}, *empty)

	seedTicket(t, s, 2, 500)
	redeemed, _ := seedTicket(t, s, 3, 100)
	require.NoError(t, s.RedeemTicket(ctx, redeemed.ID))

	stats, err := s.TicketStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, TicketStats{
		TotalTickets:    2,
		ValidTickets:    1,
		RedeemedTickets: 1,
		TotalFunds:      1300,
		TotalPeople:     5,
		RedeemedFunds:   300,
		RedeemedPeople:  3,
		PendingFunds:    1000,
		PendingPeople:   2,
	}, *stats)
}

func TestCodeStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, drained := seedTicket(t, s, 1, 100)
	seedTicket(t, s, 4, 100)

	_, err := s.ConsumeUse(ctx, drained.ID)
	require.NoError(t, err)

	stats, err := s.CodeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, CodeStats{
		TotalCodes:         2,
		TotalUsesRemaining: 4,
		ActiveCodes:        1,
		FullyUsedCodes:     1,
	}, *stats)
}
