package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"finanzen/internal/amqp"
	applog "finanzen/internal/log"
	"finanzen/internal/remote"
	"finanzen/internal/sheets"
	"finanzen/internal/sheets/memory"
	"finanzen/internal/storage"
)

// countingReader counts category lookups so tests can observe the cache.
type countingReader struct {
	remote.Reader
	categoryCalls atomic.Int32
}

func (c *countingReader) ListActiveCategories(ctx context.Context) ([]remote.CategoryRow, error) {
	c.categoryCalls.Add(1)
	return c.Reader.ListActiveCategories(ctx)
}

type failingWriter struct{}

func (failingWriter) Upsert(context.Context, sheets.Row) (string, error) {
	return "", errors.New("quota exceeded")
}
func (failingWriter) Remove(context.Context, int, string) error { return errors.New("quota exceeded") }

func setup(t *testing.T) (*storage.SQLiteRepository, *countingReader, *memory.Store, *ExportWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "remote.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	reader := &countingReader{Reader: repo}
	sheet := memory.New()
	return repo, reader, sheet, NewExportWorker(reader, sheet, time.Hour)
}

func TestHandleChangeExportsTransaction(t *testing.T) {
	repo, reader, sheet, w := setup(t)
	ctx := context.Background()
	when := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	tx, err := repo.CreateTransaction(ctx, remote.TransactionRow{
		UserID: "u1", CategoryID: "cat-lebensmittel", Name: "Rewe", AmountCents: -2350, OccurredAt: when,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transaction", "create", tx.ID, "u1")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	rows := sheet.Rows(2025)
	if len(rows) != 1 || rows[0].Category != "Lebensmittel" || rows[0].AmountCents != -2350 {
		t.Fatalf("rows = %+v", rows)
	}

	tx.AmountCents = -2500
	if err := repo.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transaction", "update", tx.ID, "u1")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	rows = sheet.Rows(2025)
	if len(rows) != 1 || rows[0].AmountCents != -2500 {
		t.Fatalf("update did not replace row: %+v", rows)
	}
	if n := reader.categoryCalls.Load(); n != 1 {
		t.Errorf("category list loaded %d times, want 1", n)
	}
}

func TestHandleChangeDelete(t *testing.T) {
	_, _, sheet, w := setup(t)
	ctx := context.Background()
	sheet.Upsert(ctx, sheets.Row{ID: "tx-1", Date: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Name: "Kino"})
	sheet.Upsert(ctx, sheets.Row{ID: "tx-2", Date: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), Name: "Silvester"})

	for _, id := range []string{"tx-1", "tx-2"} {
		msg := amqp.NewChangeMessage("transaction", "delete", id, "u1")
		msg.Timestamp = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
		if err := w.HandleChange(ctx, msg); err != nil {
			t.Fatalf("HandleChange(%s): %v", id, err)
		}
	}
	if rows := sheet.Rows(2025); len(rows) != 0 {
		t.Errorf("row not removed: %+v", rows)
	}
	if rows := sheet.Rows(2024); len(rows) != 0 {
		t.Errorf("previous-year row not removed: %+v", rows)
	}
}

func TestHandleChangeSkips(t *testing.T) {
	_, _, sheet, w := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		msg  *amqp.ChangeMessage
	}{
		{"other entity", amqp.NewChangeMessage("goal", "create", "g-1", "u1")},
		{"vanished transaction", amqp.NewChangeMessage("transaction", "create", "gone", "u1")},
		{"unknown op", amqp.NewChangeMessage("transaction", "reset", "", "u1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleChange(ctx, tt.msg); err != nil {
				t.Errorf("HandleChange() = %v, want nil", err)
			}
		})
	}
	if rows := sheet.Rows(time.Now().Year()); len(rows) != 0 {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestHandleChangeWriterFailure(t *testing.T) {
	repo, reader, _, _ := setup(t)
	ctx := context.Background()
	tx, err := repo.CreateTransaction(ctx, remote.TransactionRow{
		UserID: "u1", CategoryID: "cat-freizeit", Name: "Kino", AmountCents: -1200, OccurredAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	w := NewExportWorker(reader, failingWriter{}, time.Hour)

	if err := w.HandleChange(ctx, amqp.NewChangeMessage("transaction", "create", tx.ID, "u1")); err == nil {
		t.Fatal("expected writer error to be returned for redelivery")
	}
}

func TestExportAll(t *testing.T) {
	repo, _, sheet, w := setup(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"Miete", "Rewe", "Bahn"} {
		_, err := repo.CreateTransaction(ctx, remote.TransactionRow{
			UserID: "u1", CategoryID: "cat-sonstiges", Name: name,
			AmountCents: -int64(1000 * (i + 1)), OccurredAt: base.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	repo.CreateTransaction(ctx, remote.TransactionRow{UserID: "u2", CategoryID: "cat-sonstiges", Name: "fremd", OccurredAt: base})

	n, err := w.ExportAll(ctx, "u1")
	if err != nil || n != 3 {
		t.Fatalf("ExportAll = %d, %v", n, err)
	}
	rows := sheet.Rows(2025)
	if len(rows) != 3 || rows[0].Name != "Miete" || rows[2].Name != "Bahn" {
		t.Fatalf("rows not oldest first: %+v", rows)
	}
}

func TestHandleChangeLogsAsWorker(t *testing.T) {
	_, _, _, w := setup(t)
	var buf bytes.Buffer
	ctx := applog.WithContext(context.Background(), applog.New(applog.Config{
		Level: slog.LevelDebug, Component: applog.ComponentCLI, Output: &buf,
	}))

	if err := w.HandleChange(ctx, amqp.NewChangeMessage("budget", "delete", "b-1", "u1")); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "component=worker") || !strings.Contains(out, "id=b-1") {
		t.Errorf("output = %s", out)
	}
}
