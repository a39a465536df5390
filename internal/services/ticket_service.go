package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/farellandr/qrticket/internal/metrics"
	"github.com/farellandr/qrticket/internal/models"
	"github.com/farellandr/qrticket/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TicketStore is the persistence surface the service needs. *store.Store
// implements it.
type TicketStore interface {
	CreateTicketWithCode(ctx context.Context, ticket *models.Ticket, code *models.RedeemableCode) error
	GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListTickets(ctx context.Context, limit, offset int) ([]models.Ticket, error)
	GetCode(ctx context.Context, id uuid.UUID) (*models.RedeemableCode, error)
	ConsumeUse(ctx context.Context, codeID uuid.UUID) (int, error)
	RedeemTicket(ctx context.Context, ticketID uuid.UUID) error
	DeleteTicket(ctx context.Context, ticketID uuid.UUID) error
	TicketStats(ctx context.Context) (*store.TicketStats, error)
	CodeStats(ctx context.Context) (*store.CodeStats, error)
}

// CodeRenderer turns a code identifier into a scannable image.
type CodeRenderer interface {
	PNG(content string) ([]byte, error)
	DataURL(content string) (string, error)
}

type CreateTicketInput struct {
	BuyerName  string
	BuyerEmail *string
	EventName  string
	Quantity   int
	Price      int
}

type ListOptions struct {
	Page  int
	Limit int
}

type CodeSummary struct {
	ID              uuid.UUID `json:"code_id"`
	Image           string    `json:"code_image"`
	UsesRemaining   int       `json:"uses_remaining"`
	UsesConsumed    int       `json:"uses_consumed"`
	TotalUses       int       `json:"total_uses"`
	IsFullyRedeemed bool      `json:"is_fully_redeemed"`
}

type TicketDetail struct {
	models.Ticket
	Code CodeSummary `json:"code"`
}

type TicketValidation struct {
	Valid   bool           `json:"valid"`
	Message string         `json:"message"`
	Ticket  *models.Ticket `json:"ticket,omitempty"`
}

const (
	ReasonNotFound        = "not_found"
	ReasonExhausted       = "exhausted"
	ReasonAlreadyRedeemed = "already_redeemed"
)

type CodeValidation struct {
	Valid         bool           `json:"valid"`
	Reason        string         `json:"reason,omitempty"`
	Message       string         `json:"message"`
	CodeID        *uuid.UUID     `json:"code_id,omitempty"`
	UsesRemaining int            `json:"uses_remaining"`
	Ticket        *models.Ticket `json:"ticket,omitempty"`
}

type ConsumeResult struct {
	CodeID        uuid.UUID `json:"code_id"`
	UsesRemaining int       `json:"uses_remaining"`
	Message       string    `json:"message"`
}

type TicketService struct {
	store    TicketStore
	renderer CodeRenderer
	logger   *zap.Logger
}

func NewTicketService(ticketStore TicketStore, renderer CodeRenderer, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:    ticketStore,
		renderer: renderer,
		logger:   logger,
	}
}

func (in *CreateTicketInput) normalize() error {
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	in.EventName = strings.TrimSpace(in.EventName)

	if in.BuyerName == "" {
		return invalidInput("buyer_name is required")
	}
	if in.EventName == "" {
		return invalidInput("event_name is required")
	}
	if in.Quantity <= 0 {
		return invalidInput("quantity must be greater than 0")
	}
	if in.Price <= 0 {
		return invalidInput("price must be greater than 0")
	}
	if in.Quantity > maxInt/in.Price {
		return invalidInput("quantity times price overflows")
	}

	if in.BuyerEmail != nil {
		email := strings.TrimSpace(*in.BuyerEmail)
		if email == "" {
			in.BuyerEmail = nil
			return nil
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return invalidInput("buyer_email is not a valid address")
		}
		in.BuyerEmail = &email
	}
	return nil
}

const maxInt = int(^uint(0) >> 1)

func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*TicketDetail, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		ID:         uuid.New(),
		BuyerName:  input.BuyerName,
		BuyerEmail: input.BuyerEmail,
		EventName:  input.EventName,
		Status:     models.TicketStatusValid,
		Quantity:   input.Quantity,
		Price:      input.Price,
		Total:      input.Quantity * input.Price,
	}
	code := &models.RedeemableCode{
		ID:            uuid.New(),
		UsesRemaining: input.Quantity,
	}

	// the image is rendered before the insert; a render failure writes nothing
	image, err := s.renderer.DataURL(code.ID.String())
	if err != nil {
		s.logger.Error("render code image failed", zap.String("code_id", code.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("render code image: %w", err)
	}

	if err := s.store.CreateTicketWithCode(ctx, ticket, code); err != nil {
		s.logger.Error("create ticket failed", zap.Error(err))
		return nil, storeFailure("create ticket", err)
	}

	metrics.IncTicketsCreated()
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID.String()),
		zap.String("code_id", code.ID.String()),
		zap.Int("quantity", ticket.Quantity),
		zap.Int("total", ticket.Total),
	)

	return summarize(ticket, code, image), nil
}

func (s *TicketService) GetTicket(ctx context.Context, id uuid.UUID) (*TicketDetail, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return nil, s.fail("get ticket", translate("get ticket", err, ErrTicketNotFound))
	}
	if ticket.Code == nil {
		return nil, s.fail("get ticket", ErrCodeNotFound)
	}
	return s.detail(ticket, ticket.Code)
}

func (s *TicketService) ListTickets(ctx context.Context, opts ListOptions) ([]models.Ticket, error) {
	limit, offset := 0, 0
	if opts.Limit > 0 {
		page := opts.Page
		if page <= 0 {
			page = 1
		}
		limit = opts.Limit
		offset = (page - 1) * opts.Limit
	}

	tickets, err := s.store.ListTickets(ctx, limit, offset)
	if err != nil {
		return nil, s.fail("list tickets", storeFailure("list tickets", err))
	}
	return tickets, nil
}

// ValidateTicket reports whether the ticket can still be redeemed as a whole.
// It never mutates state.
func (s *TicketService) ValidateTicket(ctx context.Context, id uuid.UUID) (*TicketValidation, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &TicketValidation{Valid: false, Message: "ticket not found"}, nil
	}
	if err != nil {
		return nil, s.fail("validate ticket", storeFailure("validate ticket", err))
	}

	ticket.Code = nil
	if ticket.IsRedeemed() {
		return &TicketValidation{Valid: false, Message: "ticket already redeemed", Ticket: ticket}, nil
	}
	return &TicketValidation{Valid: true, Message: "ticket is valid", Ticket: ticket}, nil
}

// RedeemTicket flips the whole ticket to Redeemed. It does not touch the
// ticket's code counter.
func (s *TicketService) RedeemTicket(ctx context.Context, id uuid.UUID) error {
	err := translate("redeem ticket", s.store.RedeemTicket(ctx, id), ErrTicketNotFound)
	metrics.IncTicketRedemption(outcomeOf(err))
	if err != nil {
		return s.fail("redeem ticket", err, zap.String("ticket_id", id.String()))
	}

	s.logger.Info("ticket redeemed", zap.String("ticket_id", id.String()))
	return nil
}

// ConsumeCode takes one use from the code.
func (s *TicketService) ConsumeCode(ctx context.Context, codeID uuid.UUID) (*ConsumeResult, error) {
	remaining, err := s.store.ConsumeUse(ctx, codeID)
	err = translate("consume code", err, ErrCodeNotFound)
	metrics.IncCodeConsumption(outcomeOf(err))
	if err != nil {
		return nil, s.fail("consume code", err, zap.String("code_id", codeID.String()))
	}

	s.logger.Info("code consumed",
		zap.String("code_id", codeID.String()),
		zap.Int("uses_remaining", remaining),
	)
	return &ConsumeResult{
		CodeID:        codeID,
		UsesRemaining: remaining,
		Message:       fmt.Sprintf("code redeemed, %d uses remaining", remaining),
	}, nil
}

// ValidateCode is the read-only pre-flight check a scanner runs before
// consuming.
func (s *TicketService) ValidateCode(ctx context.Context, codeID uuid.UUID) (*CodeValidation, error) {
	code, err := s.store.GetCode(ctx, codeID)
	if errors.Is(err, store.ErrNotFound) {
		return &CodeValidation{Valid: false, Reason: ReasonNotFound, Message: "code not found"}, nil
	}
	if err != nil {
		return nil, s.fail("validate code", storeFailure("validate code", err))
	}

	if code.IsExhausted() {
		return &CodeValidation{
			Valid:   false,
			Reason:  ReasonExhausted,
			Message: "code has no uses remaining",
			CodeID:  &code.ID,
		}, nil
	}

	ticket, err := s.store.GetTicket(ctx, code.TicketID)
	if err != nil {
		return nil, s.fail("validate code", translate("validate code", err, ErrTicketNotFound))
	}
	ticket.Code = nil

	return &CodeValidation{
		Valid:         true,
		Message:       fmt.Sprintf("code is valid, %d uses remaining", code.UsesRemaining),
		CodeID:        &code.ID,
		UsesRemaining: code.UsesRemaining,
		Ticket:        ticket,
	}, nil
}

func (s *TicketService) CodeImage(ctx context.Context, codeID uuid.UUID) ([]byte, error) {
	if _, err := s.store.GetCode(ctx, codeID); err != nil {
		return nil, s.fail("code image", translate("code image", err, ErrCodeNotFound))
	}

	png, err := s.renderer.PNG(codeID.String())
	if err != nil {
		return nil, s.fail("code image", fmt.Errorf("render code image: %w", err))
	}
	return png, nil
}

func (s *TicketService) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	if err := translate("delete ticket", s.store.DeleteTicket(ctx, id), ErrTicketNotFound); err != nil {
		return s.fail("delete ticket", err, zap.String("ticket_id", id.String()))
	}

	metrics.IncTicketsDeleted()
	s.logger.Info("ticket deleted", zap.String("ticket_id", id.String()))
	return nil
}

func (s *TicketService) Stats(ctx context.Context) (*store.TicketStats, error) {
	stats, err := s.store.TicketStats(ctx)
	if err != nil {
		return nil, s.fail("ticket stats", storeFailure("ticket stats", err))
	}
	return stats, nil
}

func (s *TicketService) CodeStats(ctx context.Context) (*store.CodeStats, error) {
	stats, err := s.store.CodeStats(ctx)
	if err != nil {
		return nil, s.fail("code stats", storeFailure("code stats", err))
	}
	return stats, nil
}

func (s *TicketService) detail(ticket *models.Ticket, code *models.RedeemableCode) (*TicketDetail, error) {
	image, err := s.renderer.DataURL(code.ID.String())
	if err != nil {
		s.logger.Error("render code image failed", zap.String("code_id", code.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("render code image: %w", err)
	}
	return summarize(ticket, code, image), nil
}

func summarize(ticket *models.Ticket, code *models.RedeemableCode, image string) *TicketDetail {
	out := &TicketDetail{
		Ticket: *ticket,
		Code: CodeSummary{
			ID:              code.ID,
			Image:           image,
			UsesRemaining:   code.UsesRemaining,
			UsesConsumed:    ticket.Quantity - code.UsesRemaining,
			TotalUses:       ticket.Quantity,
			IsFullyRedeemed: code.UsesRemaining == 0,
		},
	}
	out.Ticket.Code = nil
	return out
}

func (s *TicketService) fail(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("operation", op), zap.Error(err))
	if IsRetryable(err) {
		s.logger.Error("ticket operation failed", fields...)
	} else {
		s.logger.Warn("ticket operation rejected", fields...)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrCodeExhausted):
		return metrics.OutcomeExhausted
	case errors.Is(err, ErrTicketAlreadyRedeemed):
		return metrics.OutcomeAlreadyRedeemed
	default:
		return metrics.OutcomeError
	}
}
