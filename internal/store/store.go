package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farellandr/qrticket/internal/metrics"
	"github.com/farellandr/qrticket/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrExhausted       = errors.New("code has no uses remaining")
	ErrAlreadyRedeemed = errors.New("ticket already redeemed")
)

type Options struct {
	// MaxOpenConns caps the pool. SQLite stores should use 1.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
	SkipMigrate     bool
}

// Store is the ticket store handle. It is safe for concurrent use and must be
// closed with Close.
type Store struct {
	db *gorm.DB
}

func Open(dialector gorm.Dialector, opts Options) (*Store, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Silent
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if !opts.SkipMigrate {
		if err := db.AutoMigrate(&models.Ticket{}, &models.RedeemableCode{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateTicketWithCode inserts the ticket and its code in one transaction.
// Either both rows exist afterwards or neither does.
func (s *Store) CreateTicketWithCode(ctx context.Context, ticket *models.Ticket, code *models.RedeemableCode) error {
	defer observe("create_ticket")()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket.Code = nil
		if err := tx.Create(ticket).Error; err != nil {
			return err
		}

		code.TicketID = ticket.ID
		if err := tx.Create(code).Error; err != nil {
			return err
		}

		ticket.Code = code
		return nil
	})
}

func (s *Store) GetTicket(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	defer observe("get_ticket")()

	var ticket models.Ticket
	if err := s.db.WithContext(ctx).Preload("Code").Where("id = ?", id).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (s *Store) ListTickets(ctx context.Context, limit, offset int) ([]models.Ticket, error) {
	defer observe("list_tickets")()

	query := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	tickets := make([]models.Ticket, 0)
	if err := query.Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) GetCode(ctx context.Context, id uuid.UUID) (*models.RedeemableCode, error) {
	defer observe("get_code")()

	var code models.RedeemableCode
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &code, nil
}

// ConsumeUse decrements the code's remaining uses by one and returns the new
// count. The check and the decrement are a single conditional UPDATE, so two
// callers can never both take the last use.
func (s *Store) ConsumeUse(ctx context.Context, codeID uuid.UUID) (int, error) {
	defer observe("consume_use")()

	var remaining int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.RedeemableCode{}).
			Where("id = ? AND uses_remaining > 0", codeID).
			Updates(map[string]interface{}{
				"uses_remaining": gorm.Expr("uses_remaining - 1"),
				"redeemed":       gorm.Expr("uses_remaining <= 1"),
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			exists, err := rowExists(tx, &models.RedeemableCode{}, codeID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrExhausted
		}

		return tx.Model(&models.RedeemableCode{}).
			Select("uses_remaining").
			Where("id = ?", codeID).
			Row().
			Scan(&remaining)
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// RedeemTicket flips the ticket from Valid to Redeemed. It fails with
// ErrNotFound or ErrAlreadyRedeemed when no row matched.
func (s *Store) RedeemTicket(ctx context.Context, ticketID uuid.UUID) error {
	defer observe("redeem_ticket")()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ?", ticketID, models.TicketStatusValid).
			Update("status", models.TicketStatusRedeemed)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}

		exists, err := rowExists(tx, &models.Ticket{}, ticketID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyRedeemed
	})
}

// DeleteTicket removes the code and then the ticket in one transaction.
func (s *Store) DeleteTicket(ctx context.Context, ticketID uuid.UUID) error {
	defer observe("delete_ticket")()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", ticketID).Delete(&models.RedeemableCode{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", ticketID).Delete(&models.Ticket{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func rowExists(tx *gorm.DB, model interface{}, id uuid.UUID) (bool, error) {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func observe(operation string) func() {
	startedAt := time.Now()
	return func() {
		metrics.ObserveStoreOperation(operation, time.Since(startedAt))
	}
}
