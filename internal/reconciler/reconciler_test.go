package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
)

type fakeStore struct {
	statusCalls   []statusCall
	refCalls      []refCall
	executions    []domain.Execution
	setStatusErr  error
}

type statusCall struct {
	orderID int64
	status  domain.OrderStatus
	reason  string
}

type refCall struct {
	orderID int64
	ref     string
}

func (f *fakeStore) ListStaleSentOrders(ctx context.Context, maxAgeSeconds int64, limit int) ([]ports.QueuedOrder, error) {
	return nil, nil
}

func (f *fakeStore) SetStatus(ctx context.Context, orderID int64, status domain.OrderStatus, reason string) error {
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	f.statusCalls = append(f.statusCalls, statusCall{orderID, status, reason})
	return nil
}

func (f *fakeStore) SetExecutorRef(ctx context.Context, orderID int64, ref string) error {
	f.refCalls = append(f.refCalls, refCall{orderID, ref})
	return nil
}

func (f *fakeStore) CreateExecution(ctx context.Context, e domain.Execution) error {
	f.executions = append(f.executions, e)
	return nil
}

type fakeVenue struct {
	cancelResult domain.CancelResult
	cancelErr    error
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, keyRef string, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	return domain.PlacedOrder{}, nil
}
func (f *fakeVenue) CancelOrder(ctx context.Context, ref string) (domain.CancelResult, error) {
	return f.cancelResult, f.cancelErr
}
func (f *fakeVenue) OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	return domain.OrderBook{}, nil
}
func (f *fakeVenue) MarketMinOrderUSDC() float64 { return 1 }

type fakeBalanceReader struct {
	balance float64
	err     error
}

func (f *fakeBalanceReader) TokenBalance(ctx context.Context, ownerAddress, tokenID string) (float64, error) {
	return f.balance, f.err
}

type fakeNotifier struct{ canceledCalls, failedCalls int }

func (f *fakeNotifier) NotifyBlocked(ctx context.Context, pairID, tradeSignalID int64, requestedNotional float64, reason string) {
}
func (f *fakeNotifier) NotifySent(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, sourceTxHash string, marketSlug *string) {
}
func (f *fakeNotifier) NotifyFilled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, chainTxHash string, sourceTxHash string, marketSlug *string) {
}
func (f *fakeNotifier) NotifyFailed(ctx context.Context, orderID, pairID, followerWalletID int64, side string, outcome *string, notional float64, failReason string, sourceTxHash string, marketSlug *string) {
	f.failedCalls++
}
func (f *fakeNotifier) NotifyCanceled(ctx context.Context, orderID, pairID, followerWalletID int64, side string, reason string) {
	f.canceledCalls++
}
func (f *fakeNotifier) NotifyKillSwitch(ctx context.Context, reason string) {}

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func baseOrder() ports.QueuedOrder {
	q := ports.QueuedOrder{}
	q.ID = 1
	q.PairID = 1
	q.Side = domain.SideBuy
	q.TokenID = "tok"
	q.ExecutorRef = "venue-ref-1"
	q.Status = domain.OrderSent
	return q
}

func TestReconciler_CancelSuccess_BuyFirstTimeout_Reprices(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	notify := &fakeNotifier{}
	r := New(testLog(), store, venue, nil, notify, 120)

	outcome := r.processOne(context.Background(), baseOrder())

	if outcome.Status != domain.OrderQueued || outcome.Reason != domain.RepriceAfterTimeoutReason {
		t.Fatalf("got %+v, want requeue for reprice", outcome)
	}
	if len(store.refCalls) != 1 || store.refCalls[0].ref != "" {
		t.Fatalf("expected executor ref cleared, got %+v", store.refCalls)
	}
	if notify.canceledCalls != 0 {
		t.Fatalf("should not notify canceled on a reprice requeue")
	}
}

func TestReconciler_CancelSuccess_BuySecondTimeout_Cancels(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	notify := &fakeNotifier{}
	r := New(testLog(), store, venue, nil, notify, 120)
	o := baseOrder()
	o.BlockedReason = domain.RepriceAfterTimeoutReason

	outcome := r.processOne(context.Background(), o)

	if outcome.Status != domain.OrderCanceled {
		t.Fatalf("got %+v, want canceled on second BUY timeout", outcome)
	}
	if notify.canceledCalls != 1 {
		t.Fatalf("expected a canceled notification")
	}
}

func TestReconciler_CancelSuccess_Sell_Cancels(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	r := New(testLog(), store, venue, nil, &fakeNotifier{}, 120)
	o := baseOrder()
	o.Side = domain.SideSell

	outcome := r.processOne(context.Background(), o)

	if outcome.Status != domain.OrderCanceled {
		t.Fatalf("got %+v, want canceled for SELL regardless of reprice history", outcome)
	}
}

func TestReconciler_CancelFailure_MarksFailedAndRecordsExecution(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelErr: errors.New("venue unreachable")}
	notify := &fakeNotifier{}
	r := New(testLog(), store, venue, nil, notify, 120)

	outcome := r.processOne(context.Background(), baseOrder())

	if outcome.Status != domain.OrderFailed {
		t.Fatalf("got %+v, want failed", outcome)
	}
	if len(store.executions) != 1 || store.executions[0].Status != domain.ExecutionFailed {
		t.Fatalf("expected one failed execution recorded, got %+v", store.executions)
	}
	if notify.failedCalls != 1 {
		t.Fatalf("expected a failed notification")
	}
}

func TestReconciler_OnchainBalanceConfirmsFill_SkipsCancel(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	balances := &fakeBalanceReader{balance: 10}
	r := New(testLog(), store, venue, balances, &fakeNotifier{}, 120)

	outcome := r.processOne(context.Background(), baseOrder())

	if outcome.Status != domain.OrderFilled || outcome.Reason != "onchain_balance_confirmed" {
		t.Fatalf("got %+v, want filled via onchain balance short-circuit", outcome)
	}
}

func TestReconciler_OnchainBalanceZero_FallsThroughToCancel(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	balances := &fakeBalanceReader{balance: 0}
	r := New(testLog(), store, venue, balances, &fakeNotifier{}, 120)

	outcome := r.processOne(context.Background(), baseOrder())

	if outcome.Status == domain.OrderFilled {
		t.Fatalf("zero onchain balance should not short-circuit to filled")
	}
}

func TestReconciler_OnchainBalanceCheck_OnlyAppliesToBuy(t *testing.T) {
	store := &fakeStore{}
	venue := &fakeVenue{cancelResult: domain.CancelResult{Canceled: true}}
	balances := &fakeBalanceReader{balance: 10}
	r := New(testLog(), store, venue, balances, &fakeNotifier{}, 120)
	o := baseOrder()
	o.Side = domain.SideSell
	o.BlockedReason = domain.RepriceAfterTimeoutReason

	outcome := r.processOne(context.Background(), o)

	if outcome.Status != domain.OrderCanceled {
		t.Fatalf("got %+v, want the SELL path to ignore onchain balance and cancel normally", outcome)
	}
}
