package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/book-delivery/internal/model"
)

func sampleOrder() model.Order {
	return model.Order{
		ID:        7,
		User:      model.UserSummary{ID: 3, Email: "a@x.com"},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Items: []model.OrderItem{
			{ID: 1, Quantity: 2, Book: model.BookSnapshot{ID: "b1", ISBN: "9780000000001", Price: decimal.RequireFromString("10.50")}},
			{ID: 2, Quantity: 1, Book: model.BookSnapshot{ID: "b2", ISBN: "9780000000002", Price: decimal.RequireFromString("4.00")}},
		},
	}
}

func TestNewOrderPlacedEvent(t *testing.T) {
	ev := NewOrderPlacedEvent(sampleOrder())
	if ev.OrderID != 7 || ev.UserID != 3 || ev.UserEmail != "a@x.com" {
		t.Fatalf("unexpected header: %+v", ev)
	}
	if len(ev.Items) != 2 || ev.Items[0].Quantity != 2 || ev.Items[1].BookID != "b2" {
		t.Fatalf("unexpected items: %+v", ev.Items)
	}
	if !ev.TotalPrice.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("total = %s, want 25.00", ev.TotalPrice)
	}
}

func TestAppendOrderLine(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	body, err := json.Marshal(NewOrderPlacedEvent(sampleOrder()))
	if err != nil {
		t.Fatal(err)
	}
	if err := appendOrderLine(dir, body); err != nil {
		t.Fatalf("appendOrderLine: %v", err)
	}
	if err := appendOrderLine(dir, body); err != nil {
		t.Fatalf("appendOrderLine: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, orderLogFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, want := range []string{"order_id=7", "user_id=3", "total=25.00", "9780000000001 x2"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestAppendOrderLineRejectsBadPayload(t *testing.T) {
	dir := t.TempDir()
	if err := appendOrderLine(dir, []byte("{not json")); err == nil {
		t.Error("expected unmarshal error")
	}
	if err := appendOrderLine(dir, []byte(`{"user_id":1}`)); err == nil {
		t.Error("expected error for missing order_id")
	}
}
