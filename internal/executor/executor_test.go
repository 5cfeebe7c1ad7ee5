package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
	"github.com/alejandrodnm/mirrorcore/internal/ports"
)

type fakeVenue struct {
	book        domain.OrderBook
	bookErr     error
	placeErr    error
	placed      domain.PlacedOrder
	invalidTill int // PlaceOrder returns "invalid amounts" this many times before succeeding
	calls       int
	lastReq     domain.PlaceOrderRequest
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, keyRef string, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.invalidTill {
		return domain.PlacedOrder{}, errors.New("invalid amounts: maker=0")
	}
	if f.placeErr != nil {
		return domain.PlacedOrder{}, f.placeErr
	}
	return f.placed, nil
}

func (f *fakeVenue) CancelOrder(ctx context.Context, ref string) (domain.CancelResult, error) {
	return domain.CancelResult{Canceled: true}, nil
}

func (f *fakeVenue) OrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	if f.bookErr != nil {
		return domain.OrderBook{}, f.bookErr
	}
	return f.book, nil
}

func (f *fakeVenue) MarketMinOrderUSDC() float64 { return 1 }

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseBook() domain.OrderBook {
	return domain.OrderBook{
		TokenID:  "tok",
		TickSize: 0.01,
		Bids:     []domain.BookEntry{{Price: 0.49, Size: 100}},
		Asks:     []domain.BookEntry{{Price: 0.51, Size: 100}},
	}
}

func baseOrder() ports.QueuedOrder {
	q := ports.QueuedOrder{}
	q.PairID = 1
	q.TradeSignalID = 1
	q.Side = domain.SideBuy
	q.TokenID = "tok"
	q.KeyRef = "vault://x"
	q.AdjustedNotionalUSDC = 10
	q.Status = domain.OrderQueued
	return q
}

func TestEngine_Run_BuyUsesSourcePricePlusTick(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), placed: domain.PlacedOrder{ExecutorRef: "ref-1", ChainTxHash: "0xabc", Filled: true}}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFilled {
		t.Fatalf("got status %v, want filled", out.Status)
	}
	if out.ExecutedPrice < 0.50 || out.ExecutedPrice > 0.52 {
		t.Fatalf("got executed price %v, want near src+tick", out.ExecutedPrice)
	}
}

func TestEngine_Run_BuyWidensDeltaOnRepriceRetry(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), placed: domain.PlacedOrder{ExecutorRef: "ref-1", Filled: false}}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src
	o.BlockedReason = domain.RepriceAfterTimeoutReason

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderSent {
		t.Fatalf("got status %v, want sent", out.Status)
	}
	if venue.lastReq.Price < 0.595 || venue.lastReq.Price > 0.605 {
		t.Fatalf("got order price %v, want src+0.10", venue.lastReq.Price)
	}
}

func TestEngine_Run_SellAnchorsBelowSourcePrice(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), placed: domain.PlacedOrder{ExecutorRef: "ref-1", Filled: true}}
	e := New(testLog(), venue)
	src := 0.60
	o := baseOrder()
	o.Side = domain.SideSell
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFilled {
		t.Fatalf("got status %v, want filled", out.Status)
	}
	if out.ExecutedPrice >= 0.60 {
		t.Fatalf("got executed price %v, want below source price", out.ExecutedPrice)
	}
}

func TestEngine_Run_NoPriceSourceFails(t *testing.T) {
	venue := &fakeVenue{book: domain.OrderBook{TokenID: "tok", TickSize: 0.01}}
	e := New(testLog(), venue)
	o := baseOrder()

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFailed || out.FailReason != "no_reference_price" {
		t.Fatalf("got %+v, want failed/no_reference_price", out)
	}
}

func TestEngine_Run_OrderBookFetchFailureFallsBackToDefaultTick(t *testing.T) {
	venue := &fakeVenue{bookErr: errors.New("rpc down"), placed: domain.PlacedOrder{ExecutorRef: "ref-1", Filled: true}}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFilled {
		t.Fatalf("got status %v, want filled despite book fetch failure", out.Status)
	}
	if out.ExecutedPrice < 0.5005 || out.ExecutedPrice > 0.5015 {
		t.Fatalf("got executed price %v, want src+0.001 (fallback tick)", out.ExecutedPrice)
	}
}

func TestEngine_Run_RetriesQuantizationOnInvalidAmounts(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), invalidTill: 2, placed: domain.PlacedOrder{ExecutorRef: "ref-1", Filled: true}}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFilled {
		t.Fatalf("got status %v, want filled after precision retries", out.Status)
	}
	if venue.calls != 3 {
		t.Fatalf("got %d place attempts, want 3 (two invalid + one success)", venue.calls)
	}
}

func TestEngine_Run_NonInvalidAmountsRejectionFailsImmediately(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), placeErr: errors.New("insufficient balance")}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFailed {
		t.Fatalf("got status %v, want failed", out.Status)
	}
	if out.FailReason != "exchange_rejected:insufficient balance" {
		t.Fatalf("got fail reason %q", out.FailReason)
	}
	if venue.calls != 1 {
		t.Fatalf("got %d place attempts, want exactly 1 (no retry on non-invalid-amounts error)", venue.calls)
	}
}

func TestEngine_Run_ExhaustsPrecisionLadderAndFails(t *testing.T) {
	venue := &fakeVenue{book: baseBook(), invalidTill: 100}
	e := New(testLog(), venue)
	src := 0.50
	o := baseOrder()
	o.SourcePrice = &src

	out := e.Run(context.Background(), o)

	if out.Status != domain.OrderFailed {
		t.Fatalf("got status %v, want failed", out.Status)
	}
	if venue.calls != 3 {
		t.Fatalf("got %d place attempts, want 3 (full ladder)", venue.calls)
	}
}
