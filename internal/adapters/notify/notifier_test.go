package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alejandrodnm/mirrorcore/internal/domain"
)

type fakeSink struct {
	sent []string
	err  error
}

func (f *fakeSink) Send(ctx context.Context, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message)
	return nil
}

type fakeAlertStore struct {
	recorded []domain.AlertLedger
}

func (f *fakeAlertStore) RecordAlert(ctx context.Context, a domain.AlertLedger) error {
	f.recorded = append(f.recorded, a)
	return nil
}

func testLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNotifier_NotifyBlocked_RecordsSentStatus(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeAlertStore{}
	n := New(testLog(), sink, store)

	n.NotifyBlocked(context.Background(), 1, 2, 25.5, "insufficient_budget_for_one_share")

	if len(sink.sent) != 1 {
		t.Fatalf("expected one sink send, got %d", len(sink.sent))
	}
	if len(store.recorded) != 1 || store.recorded[0].Status != domain.AlertSent {
		t.Fatalf("expected one alert recorded as sent, got %+v", store.recorded)
	}
	if store.recorded[0].EventType != domain.EventBlocked {
		t.Fatalf("got event type %v, want blocked", store.recorded[0].EventType)
	}
}

func TestNotifier_SinkFailure_RecordsFailedStatusButDoesNotPropagate(t *testing.T) {
	sink := &fakeSink{err: errors.New("network down")}
	store := &fakeAlertStore{}
	n := New(testLog(), sink, store)

	n.NotifyKillSwitch(context.Background(), "consecutive_exec_failures")

	if len(store.recorded) != 1 || store.recorded[0].Status != domain.AlertFailed {
		t.Fatalf("expected one alert recorded as failed, got %+v", store.recorded)
	}
}

func TestNotifier_NilSink_RecordsSkipped(t *testing.T) {
	store := &fakeAlertStore{}
	n := New(testLog(), nil, store)

	n.NotifyCanceled(context.Background(), 1, 2, 3, "sell", "open_order_timeout")

	if len(store.recorded) != 1 || store.recorded[0].Status != domain.AlertSkipped {
		t.Fatalf("expected one alert recorded as skipped, got %+v", store.recorded)
	}
}

func TestNotifier_NotifyFilled_IncludesMarketSlugWhenPresent(t *testing.T) {
	sink := &fakeSink{}
	store := &fakeAlertStore{}
	n := New(testLog(), sink, store)
	slug := "will-it-rain"
	outcome := "Yes"

	n.NotifyFilled(context.Background(), 1, 2, 3, "buy", &outcome, 10, "0xabc", "0xsrc", &slug)

	if len(sink.sent) != 1 {
		t.Fatalf("expected one send")
	}
	if !bytes.Contains([]byte(sink.sent[0]), []byte("market=will-it-rain")) {
		t.Fatalf("expected message to include market slug, got %q", sink.sent[0])
	}
}
