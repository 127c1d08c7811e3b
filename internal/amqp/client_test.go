package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{15, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("circuit breaker should be closed initially")
		}
	})

	t.Run("max failures open the circuit", func(t *testing.T) {
		for range maxFailures {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("circuit breaker should be open after max failures")
		}
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)
		if client.isCircuitOpen() {
			t.Error("circuit should let a trial call through after the timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Errorf("state = %d, want half-open", client.state)
		}
	})

	t.Run("failed trial call reopens", func(t *testing.T) {
		client.recordFailure()
		if !client.isCircuitOpen() {
			t.Error("circuit should reopen after a failed trial call")
		}
	})

	t.Run("success resets", func(t *testing.T) {
		client.recordSuccess()
		if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("success should close the circuit and reset failures")
		}
	})
}

func TestPublishChangeFailsFast(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}
	msg := NewChangeMessage("transaction", "create", "tx-1", "u1")

	t.Run("open circuit", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishChange(context.Background(), msg)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("PublishChange() = %v, want ErrCircuitOpen", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishChange(ctx, msg); err != context.Canceled {
			t.Errorf("PublishChange() = %v, want context.Canceled", err)
		}
	})
}

type fakeAcknowledger struct {
	acked, nacked, requeued bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestHandleDelivery(t *testing.T) {
	valid, _ := NewChangeMessage("transaction", "create", "tx-1", "u1").ToJSON()
	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantAck     bool
		wantNack    bool
		wantRequeue bool
	}{
		{"handled", valid, nil, true, false, false},
		{"handler fails", valid, errors.New("sheet unavailable"), false, true, true},
		{"malformed", []byte(`{"entity":`), nil, false, true, false},
		{"missing op", []byte(`{"entity":"transaction","id":"x"}`), nil, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			var got *ChangeMessage
			handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body},
				func(_ context.Context, m *ChangeMessage) error {
					got = m
					return tt.handlerErr
				})

			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack || ack.requeued != tt.wantRequeue {
				t.Errorf("ack=%v nack=%v requeue=%v", ack.acked, ack.nacked, ack.requeued)
			}
			if tt.wantAck && (got == nil || got.ID != "tx-1" || got.UserID != "u1") {
				t.Errorf("handler got %+v", got)
			}
		})
	}
}

func TestChangeMessageJSON(t *testing.T) {
	msg := &ChangeMessage{
		Entity:    "goal",
		Op:        "delete",
		ID:        "g-1",
		UserID:    "u1",
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(raw), `"user_id":"u1"`) {
		t.Errorf("ToJSON() = %s", raw)
	}
	parsed, err := ChangeMessageFromJSON(raw)
	if err != nil {
		t.Fatalf("ChangeMessageFromJSON() error = %v", err)
	}
	if parsed.Entity != msg.Entity || parsed.Op != msg.Op || parsed.ID != msg.ID ||
		parsed.UserID != msg.UserID || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}
