package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"satchel/internal/domain"
	"satchel/internal/repos"
	"satchel/internal/services"
)

type stack struct {
	db      *sqlx.DB
	inv     *services.InventoryService
	orders  *services.OrderService
	carts   *services.CartService
	catalog *services.CatalogService
	ledger  *repos.LedgerRepo
	invRepo *repos.InventoryRepo
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	prods := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	ledger := repos.NewLedgerRepo(db)
	inv := services.NewInventoryService(invRepo, ledger, nil, 5)
	comp := services.NewCompensator(inv, nil)
	return &stack{
		db:      db,
		inv:     inv,
		orders:  services.NewOrderService(prods, repos.NewOrderRepo(db), inv, comp, nil),
		carts:   services.NewCartService(repos.NewCartRepo(db), prods),
		catalog: services.NewCatalogService(repos.NewCategoryRepo(db), prods),
		ledger:  ledger,
		invRepo: invRepo,
	}
}

// withProduct adds a plain product (no variants) with the given stock.
func (s *stack) withProduct(t *testing.T, id string, stock int) {
	t.Helper()
	_, err := s.catalog.CreateProduct(context.Background(), domain.Product{
		ID:         id,
		CategoryID: "totes",
		Name:       "Test bag " + id,
		Price:      100,
		Stock:      stock,
	})
	require.NoError(t, err)
}

func (s *stack) stock(t *testing.T, id, color string) int {
	t.Helper()
	n, err := s.invRepo.Qty(context.Background(), id, color)
	require.NoError(t, err)
	return n
}

func testAddress() domain.Address {
	return domain.Address{
		Name:       "Asha",
		Line1:      "12 MG Road",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		Country:    "IN",
		Phone:      "+91 98765 43210",
	}
}

func placeReq(customerID string, lines ...domain.OrderLine) services.PlaceOrderRequest {
	return services.PlaceOrderRequest{
		CustomerID:    customerID,
		Items:         lines,
		Shipping:      testAddress(),
		PaymentMethod: "cod",
	}
}

func line(id string, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: id, Quantity: qty}
}

// failingAdjuster fails the nth call (1-based) and delegates the rest.
type failingAdjuster struct {
	next   services.StockAdjuster
	failOn int
	err    error

	mu    sync.Mutex
	calls int
}

func (f *failingAdjuster) Adjust(ctx context.Context, p repos.AdjustParams) (domain.StockAdjustment, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n == f.failOn {
		return domain.StockAdjustment{}, f.err
	}
	return f.next.Adjust(ctx, p)
}
