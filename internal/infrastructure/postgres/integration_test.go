//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
	"github.com/jhoicas/lot-ledger/pkg/config"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	prefixes  *inventory.PrefixTable
}

func TestPostgresIntegration(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	container, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("lot_ledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.pool, err = NewPool(s.ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 10, MinConns: 1}, nil)
	s.Require().NoError(err)
	s.Require().NoError(Migrate(s.ctx, s.pool))
	// Idempotente.
	s.Require().NoError(Migrate(s.ctx, s.pool))

	s.prefixes = inventory.NewPrefixTable(map[string]string{"wh-ph": "PH", "wh-bg": "BG"})
	warehouses := NewWarehouseRepository(s.pool)
	for id, prefix := range s.prefixes.Entries() {
		now := time.Now()
		s.Require().NoError(warehouses.Create(s.ctx, &entity.Warehouse{ID: id, Name: id, Prefix: prefix, CreatedAt: now, UpdatedAt: now}))
	}
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

// newLedger arma un libro con su propio coordinador de bloqueos, como si fuera otro proceso.
func (s *PostgresIntegrationSuite) newLedger() (*inventory.Ledger, *inventory.CodeGenerator) {
	locks := lock.New(lock.Config{Timeout: 5 * time.Second})
	stores := NewStores(s.pool)
	gen := inventory.NewCodeGenerator(stores.Codes, s.prefixes, locks,
		inventory.CodeGeneratorConfig{MaxAttempts: 10, Backoff: 5 * time.Millisecond}, nil, nil)
	ledger := inventory.NewLedger(NewTxRunner(s.pool, 10*time.Second, 5*time.Second, nil, nil), locks, stores, gen,
		inventory.WithRetryPolicy(inventory.RetryPolicy{MaxAttempts: 10, InitialInterval: 5 * time.Millisecond, MaxInterval: 50 * time.Millisecond}))
	return ledger, gen
}

func (s *PostgresIntegrationSuite) newCode(gen *inventory.CodeGenerator, customer string) string {
	c, err := gen.Generate(s.ctx, inventory.GenerateCodeInput{
		WarehouseID: "wh-ph", CustomerName: customer, Plate: "AB1234", OpType: inventory.OpTypeInbound,
		OpDate: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	return c.String()
}

func (s *PostgresIntegrationSuite) TestBalanceVersionCheck() {
	repo := NewBalanceRepository(s.pool)
	code := "PH/VERSION/K1/20250701/001"

	b, err := repo.Get(s.ctx, code, "wh-ph")
	s.Require().NoError(err)
	s.True(b.IsNew())
	b.Quantity = entity.Quantity{Pallets: 2, Packages: 3, Weight: decimal.RequireFromString("10.5")}
	b.LastUpdated = time.Now()
	s.Require().NoError(repo.Save(s.ctx, b))
	s.Equal(int64(1), b.Version)

	stale := *b
	b.Quantity.Pallets = 1
	s.Require().NoError(repo.Save(s.ctx, b))
	s.ErrorIs(repo.Save(s.ctx, &stale), domain.ErrVersionConflict)

	got, err := repo.Get(s.ctx, code, "wh-ph")
	s.Require().NoError(err)
	s.Equal(int64(1), got.Quantity.Pallets)
	s.True(got.Quantity.Weight.Equal(decimal.RequireFromString("10.5")))
}

func (s *PostgresIntegrationSuite) TestCodeGenerationAcrossProcesses() {
	_, genA := s.newLedger()
	_, genB := s.newLedger()

	const n = 20
	var wg sync.WaitGroup
	codes := make(chan string, n)
	for i := 0; i < n; i++ {
		gen := genA
		if i%2 == 1 {
			gen = genB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- s.newCode(gen, "CONCURRENT")
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for c := range codes {
		s.False(seen[c], "código repetido %s", c)
		seen[c] = true
	}
	s.Len(seen, n)
	last, err := NewLotCodeRepository(s.pool).MaxSequence(s.ctx, "PH/CONCURRENT/AB1234/20250701/")
	s.Require().NoError(err)
	s.Equal(n, last)
}

func (s *PostgresIntegrationSuite) TestNoDoubleSpendAcrossProcesses() {
	ledgerA, gen := s.newLedger()
	ledgerB, _ := s.newLedger()
	code := s.newCode(gen, "SPEND")
	_, err := ledgerA.ApplyInbound(s.ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 5, Packages: 5},
	})
	s.Require().NoError(err)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, l := range []*inventory.Ledger{ledgerA, ledgerB} {
		wg.Add(1)
		go func(l *inventory.Ledger) {
			defer wg.Done()
			_, err := l.ApplyOutbound(s.ctx, inventory.MovementInput{
				Code: code, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 3},
			})
			results <- err
		}(l)
	}
	wg.Wait()
	close(results)

	var ok, insufficient int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			s.Failf("error inesperado", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, insufficient)

	b, err := ledgerA.GetBalance(s.ctx, code, "wh-ph")
	s.Require().NoError(err)
	s.Equal(int64(2), b.Quantity.Pallets)
}

func (s *PostgresIntegrationSuite) TestPartialBatchUsesSavepoints() {
	ledger, gen := s.newLedger()
	a := s.newCode(gen, "BATCH-A")
	b := s.newCode(gen, "BATCH-B")

	res, err := ledger.ApplyBatch(s.ctx, []inventory.MovementInput{
		{Kind: entity.MovementKindInbound, Code: a, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 4}},
		{Kind: entity.MovementKindOutbound, Code: b, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 1}},
		{Kind: entity.MovementKindInbound, Code: b, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 2}},
	}, true)
	s.Require().NoError(err)
	s.Equal(2, res.Applied)
	s.Equal(1, res.Failed)

	balA, err := ledger.GetBalance(s.ctx, a, "wh-ph")
	s.Require().NoError(err)
	s.Equal(int64(4), balA.Quantity.Pallets)
	balB, err := ledger.GetBalance(s.ctx, b, "wh-ph")
	s.Require().NoError(err)
	s.Equal(int64(2), balB.Quantity.Pallets)
}

func (s *PostgresIntegrationSuite) TestTransitAndReversal() {
	ledger, gen := s.newLedger()
	code := s.newCode(gen, "TRANSIT")
	_, err := ledger.ApplyInbound(s.ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", Quantity: entity.Quantity{Pallets: 10, Packages: 10},
		Details: entity.LotDetails{Customs: "DUA-1"},
	})
	s.Require().NoError(err)

	dep, err := ledger.DepartTransit(s.ctx, inventory.MovementInput{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg", Quantity: entity.Quantity{Pallets: 4, Packages: 4},
	})
	s.Require().NoError(err)
	arr, err := ledger.ArriveTransit(s.ctx, dep.Transit.ID, "it")
	s.Require().NoError(err)
	s.Equal(int64(4), arr.Balance.Quantity.Pallets)
	s.Equal("DUA-1", arr.Balance.Details.Customs)

	rev, err := ledger.ReverseMovement(s.ctx, arr.Movement.ID, "it")
	s.Require().NoError(err)
	s.Equal(entity.TransitStatusInTransit, rev.Transit.Status)

	theo, err := ledger.TheoreticalBalance(s.ctx, code)
	s.Require().NoError(err)
	s.Equal(int64(6), theo["wh-ph"].Pallets)
	s.Equal(int64(0), theo["wh-bg"].Pallets)
}
