package venue

import (
	"context"
	"testing"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
)

func TestStub_PlaceOrder_DeterministicForSameInputs(t *testing.T) {
	s := NewStub(1, 1000)
	req := domain.PlaceOrderRequest{TokenID: "123", Side: domain.SideBuy, Price: 0.55, Size: 10}

	first, err1 := s.PlaceOrder(context.Background(), "vault://x", req)
	second, err2 := s.PlaceOrder(context.Background(), "vault://x", req)

	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("same inputs produced different error outcomes: %v vs %v", err1, err2)
	}
	if err1 == nil && first.ExecutorRef != second.ExecutorRef {
		t.Fatalf("same inputs produced different refs: %q vs %q", first.ExecutorRef, second.ExecutorRef)
	}
}

func TestStub_PlaceOrder_RespectsMaxSlippageBps(t *testing.T) {
	s := NewStub(1, 0) // no slippage tolerance, every order should fail
	_, err := s.PlaceOrder(context.Background(), "vault://x", domain.PlaceOrderRequest{TokenID: "123", Price: 0.5, Size: 1})
	if err == nil {
		t.Fatalf("expected slippage_exceeded with zero tolerance")
	}
}

func TestStub_OrderBook_HasTwoSidedBook(t *testing.T) {
	s := NewStub(1, 1000)
	book, err := s.OrderBook(context.Background(), "123")
	if err != nil {
		t.Fatal(err)
	}
	if book.BestBid() <= 0 || book.BestAsk() <= 0 || book.BestAsk() <= book.BestBid() {
		t.Fatalf("got %+v, want a valid two-sided book", book)
	}
}

func TestStub_CancelOrder_AlwaysSucceeds(t *testing.T) {
	s := NewStub(1, 1000)
	res, err := s.CancelOrder(context.Background(), "stub-order-1")
	if err != nil || !res.Canceled {
		t.Fatalf("got (%+v, %v), want canceled", res, err)
	}
}
