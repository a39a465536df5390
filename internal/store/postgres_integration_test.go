//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/farellandr/qrticket/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
)

func startPostgresStore(t *testing.T) *Store {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "qrticket_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skipping test because docker/testcontainers is unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s user=postgres password=postgres dbname=qrticket_test port=%s sslmode=disable TimeZone=UTC", host, port.Port())

	var s *Store
	deadline := time.Now().Add(30 * time.Second)
	for {
		s, err = Open(postgres.Open(dsn), Options{MaxOpenConns: 20, MaxIdleConns: 20})
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("postgres not ready: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgres_ConcurrentConsumeNeverOversells(t *testing.T) {
	s := startPostgresStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{BuyerName: "Ana", EventName: "Concert", Quantity: 5, Price: 100, Total: 500}
	code := &models.RedeemableCode{UsesRemaining: 5}
	require.NoError(t, s.CreateTicketWithCode(ctx, ticket, code))

	const workers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		exhausted int
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
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, successes)
	assert.Equal(t, workers-5, exhausted)

	got, err := s.GetCode(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UsesRemaining)
	assert.True(t, got.Redeemed)
}

func TestPostgres_ConcurrentRedeemSucceedsOnce(t *testing.T) {
	s := startPostgresStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{BuyerName: "Ana", EventName: "Concert", Quantity: 1, Price: 100, Total: 100}
	require.NoError(t, s.CreateTicketWithCode(ctx, ticket, &models.RedeemableCode{UsesRemaining: 1}))

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RedeemTicket(ctx, ticket.ID)
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyRedeemed)
	}
	assert.Equal(t, 1, successes)
}

func TestPostgres_CheckConstraintAndCascade(t *testing.T) {
	s := startPostgresStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{BuyerName: "Ana", EventName: "Concert", Quantity: 1, Price: 100, Total: 100}
	code := &models.RedeemableCode{UsesRemaining: 1}
	require.NoError(t, s.CreateTicketWithCode(ctx, ticket, code))

	err := s.db.Model(&models.RedeemableCode{}).Where("id = ?", code.ID).Update("uses_remaining", -1).Error
	assert.Error(t, err)

	require.NoError(t, s.db.Delete(&models.Ticket{}, "id = ?", ticket.ID).Error)
	_, err = s.GetCode(ctx, code.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
