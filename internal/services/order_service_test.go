package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"satchel/internal/domain"
	"satchel/internal/services"
)

func TestPlace_DecrementsStockAndSnapshotsItems(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	req := placeReq("u-asha",
		domain.OrderLine{ProductID: "tote-01", Quantity: 2, Color: domain.Color{Name: "tan"}},
		line("clutch-01", 1),
	)
	req.ClientTotal = 1.0 // tampered; server total wins
	res, err := s.orders.Place(ctx, req)
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, 2*1499.0+999.0, o.Total)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Tan", o.Items[0].Color.Name)
	assert.Equal(t, "#d2b48c", o.Items[0].Color.Code)
	assert.Equal(t, "Canvas Market Tote", o.Items[0].Name)

	require.Len(t, res.Adjustments, 2)
	assert.Equal(t, 12, res.Adjustments[0].OldStock)
	assert.Equal(t, 10, res.Adjustments[0].NewStock)

	assert.Equal(t, 10, s.stock(t, "tote-01", ""))
	assert.Equal(t, 5, s.stock(t, "tote-01", "Tan"))
	assert.Equal(t, 5, s.stock(t, "tote-01", "Black"))
	assert.Equal(t, 2, s.stock(t, "clutch-01", ""))

	saved, err := s.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, saved.Total)
	assert.Equal(t, 1.0, saved.ClientTotal)
	assert.Equal(t, testAddress(), saved.Shipping)
	assert.Equal(t, "Tan", saved.Items[0].Color.Name)

	led, err := s.ledger.ByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, led, 2)
	for _, a := range led {
		assert.Equal(t, domain.ReasonOrderPlace, a.Reason)
	}
}

func TestPlace_PaymentConfirmedStartsProcessing(t *testing.T) {
	s := newStack(t)
	req := placeReq("u-asha", line("clutch-01", 1))
	req.PaymentConfirmed = true
	res, err := s.orders.Place(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Order.Status)
}

func TestPlace_EmptyOrder(t *testing.T) {
	s := newStack(t)
	_, err := s.orders.Place(context.Background(), placeReq("u-asha"))
	require.ErrorIs(t, err, domain.ErrEmptyOrder)

	latest, err := s.orders.ListLatest(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

// A negative line must not offset a positive one for the same product.
func TestPlace_RejectsNonPositiveQuantity(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.withProduct(t, "P", 5)
	s.withProduct(t, "Q", 5)

	_, err := s.orders.Place(ctx, placeReq("u-asha", line("P", 4), line("P", -3), line("Q", 0)))
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = s.orders.Place(ctx, placeReq("u-asha", line("Q", 0)))
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	assert.Equal(t, 5, s.stock(t, "P", ""))
	assert.Equal(t, 5, s.stock(t, "Q", ""))
	latest, err := s.orders.ListLatest(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestPlace_ValidationGateMutatesNothing(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	_, err := s.orders.Place(ctx, placeReq("u-asha", line("clutch-01", 1), line("duffel-01", 1)))
	var ins *domain.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, "duffel-01", ins.ProductID)
	assert.Equal(t, 0, ins.Available)
	assert.Equal(t, 1, ins.Requested)
	assert.Equal(t, 3, s.stock(t, "clutch-01", ""))

	_, err = s.orders.Place(ctx, placeReq("u-asha", line("clutch-01", 1), line("nope-99", 1)))
	var nf *domain.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope-99", nf.ProductID)
	assert.Equal(t, 3, s.stock(t, "clutch-01", ""))

	latest, err := s.orders.ListLatest(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, latest)
}

func TestPlace_SumsRepeatedLines(t *testing.T) {
	s := newStack(t)
	_, err := s.orders.Place(context.Background(), placeReq("u-asha", line("clutch-01", 2), line("clutch-01", 2)))
	var ins *domain.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, 3, ins.Available)
	assert.Equal(t, 4, ins.Requested)
}

func TestPlace_VariantStockChecked(t *testing.T) {
	s := newStack(t)
	// pack-01 has 6 in aggregate but only 2 Navy
	_, err := s.orders.Place(context.Background(), placeReq("u-asha",
		domain.OrderLine{ProductID: "pack-01", Quantity: 3, Color: domain.Color{Name: "Navy"}}))
	var ins *domain.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, "Navy", ins.Color)
	assert.Equal(t, 2, ins.Available)
	assert.Equal(t, 6, s.stock(t, "pack-01", ""))
}

// Two concurrent orders for 3 of a product with stock 5: one wins.
func TestPlace_ConcurrentOversell(t *testing.T) {
	s := newStack(t)
	s.withProduct(t, "X", 5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.orders.Place(context.Background(), placeReq("u-asha", line("X", 3)))
		}(i)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		var ins *domain.InsufficientStockError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &ins):
			short++
			assert.Equal(t, 3, ins.Requested)
			assert.Equal(t, 2, ins.Available)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 2, s.stock(t, "X", ""))
}

func TestPlace_RaceExactlyStockWinners(t *testing.T) {
	const stock, racers = 4, 12
	s := newStack(t)
	s.withProduct(t, "R", stock)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		wins, fails int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.orders.Place(context.Background(), placeReq("u-ravi", line("R", 1)))
			mu.Lock()
			defer mu.Unlock()
			var ins *domain.InsufficientStockError
			switch {
			case err == nil:
				wins++
			case errors.As(err, &ins):
				fails++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, wins)
	assert.Equal(t, racers-stock, fails)
	assert.Equal(t, 0, s.stock(t, "R", ""))
}

func TestPlace_PartialFailureCompensates(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.withProduct(t, "A", 10)
	s.withProduct(t, "B", 10)
	s.withProduct(t, "C", 10)

	boom := errors.New("disk I/O error")
	s.orders.Stock = &failingAdjuster{next: s.inv, failOn: 3, err: boom}

	res, err := s.orders.Place(ctx, placeReq("u-asha", line("A", 1), line("B", 2), line("C", 3)))
	var partial *domain.PartialStockUpdateError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, res.Order.ID, partial.OrderID)
	require.Len(t, partial.Succeeded, 2)
	require.Len(t, partial.Failed, 1)
	assert.Equal(t, "C", partial.Failed[0].ProductID)

	// A and B were put back; C never moved
	assert.Equal(t, 10, s.stock(t, "A", ""))
	assert.Equal(t, 10, s.stock(t, "B", ""))
	assert.Equal(t, 10, s.stock(t, "C", ""))

	saved, err := s.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, saved.NeedsReview)
	assert.True(t, saved.StockReleased)

	led, err := s.ledger.ByOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	reasons := map[string]int{}
	for _, a := range led {
		reasons[a.Reason]++
	}
	assert.Equal(t, map[string]int{domain.ReasonOrderPlace: 2, domain.ReasonOrderCompensate: 2}, reasons)

	// cancelling later must not restore a second time
	s.orders.Stock = s.inv
	_, outcomes, err := s.orders.Cancel(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Equal(t, 10, s.stock(t, "A", ""))
	assert.Equal(t, 10, s.stock(t, "B", ""))
}

func TestPlace_FirstItemFailureLeavesNothingToRestore(t *testing.T) {
	s := newStack(t)
	s.orders.Stock = &failingAdjuster{next: s.inv, failOn: 1, err: errors.New("locked")}

	res, err := s.orders.Place(context.Background(), placeReq("u-asha", line("clutch-01", 1)))
	var partial *domain.PartialStockUpdateError
	require.ErrorAs(t, err, &partial)
	assert.Empty(t, partial.Succeeded)
	assert.True(t, res.Order.NeedsReview)
	assert.Equal(t, 3, s.stock(t, "clutch-01", ""))
}

// Scenario: stock 10, order 2, cancel restores to 10.
func TestCancel_RestoresStock(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.withProduct(t, "X", 10)

	res, err := s.orders.Place(ctx, placeReq("u-asha", line("X", 2)))
	require.NoError(t, err)
	assert.Equal(t, 8, s.stock(t, "X", ""))

	o, outcomes, err := s.orders.Cancel(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].OK)
	assert.Equal(t, 10, s.stock(t, "X", ""))

	_, _, err = s.orders.Cancel(ctx, res.Order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 10, s.stock(t, "X", ""))
}

func TestCancel_ReleaseClaimErrorFlagsForReview(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.withProduct(t, "X", 10)

	res, err := s.orders.Place(ctx, placeReq("u-asha", line("X", 2)))
	require.NoError(t, err)

	_, err = s.db.Exec(`CREATE TRIGGER block_release BEFORE UPDATE OF stock_released ON orders
BEGIN SELECT RAISE(ABORT, 'release blocked'); END`)
	require.NoError(t, err)

	o, outcomes, err := s.orders.Cancel(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, o.Status)
	assert.Empty(t, outcomes)
	assert.True(t, o.NeedsReview)
	assert.False(t, o.StockReleased)
	assert.Equal(t, 8, s.stock(t, "X", ""))

	saved, err := s.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, saved.Status)
	assert.True(t, saved.NeedsReview)
	assert.False(t, saved.StockReleased)
}

func TestCancel_RestoresVariantStock(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	res, err := s.orders.Place(ctx, placeReq("u-asha",
		domain.OrderLine{ProductID: "pack-01", Quantity: 2, Color: domain.Color{Name: "Navy"}}))
	require.NoError(t, err)
	assert.Equal(t, 0, s.stock(t, "pack-01", "Navy"))

	p, err := s.catalog.GetProduct(ctx, "pack-01")
	require.NoError(t, err)
	navy, ok := p.Variant("navy")
	require.True(t, ok)
	assert.False(t, navy.IsAvailable)

	_, err = s.orders.UpdateStatus(ctx, res.Order.ID, domain.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, 2, s.stock(t, "pack-01", "Navy"))
	assert.Equal(t, 6, s.stock(t, "pack-01", ""))
}

func TestUpdateStatus_Transitions(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	res, err := s.orders.Place(ctx, placeReq("u-asha", line("clutch-01", 1)))
	require.NoError(t, err)
	id := res.Order.ID

	_, err = s.orders.UpdateStatus(ctx, id, domain.StatusDelivered)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	for _, to := range []domain.OrderStatus{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		o, err := s.orders.UpdateStatus(ctx, id, to)
		require.NoError(t, err)
		assert.Equal(t, to, o.Status)
	}

	_, err = s.orders.UpdateStatus(ctx, id, domain.StatusCancelled)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 2, s.stock(t, "clutch-01", ""))

	_, err = s.orders.UpdateStatus(ctx, "missing", domain.StatusShipped)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestGetOwned(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	res, err := s.orders.Place(ctx, placeReq("u-asha", line("clutch-01", 1)))
	require.NoError(t, err)
	_, err = s.orders.GetOwned(ctx, res.Order.ID, "u-asha", "")
	require.NoError(t, err)
	_, err = s.orders.GetOwned(ctx, res.Order.ID, "u-ravi", "")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	guest := placeReq("", line("clutch-01", 1))
	guest.SessionID = "guest-1"
	res, err = s.orders.Place(ctx, guest)
	require.NoError(t, err)
	_, err = s.orders.GetOwned(ctx, res.Order.ID, "", "guest-1")
	require.NoError(t, err)
	_, err = s.orders.GetOwned(ctx, res.Order.ID, "", "guest-2")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	mine, err := s.orders.ListByCustomer(ctx, "u-asha")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

var _ services.StockAdjuster = (*services.InventoryService)(nil)
