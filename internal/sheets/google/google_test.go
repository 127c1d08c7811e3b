package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ports "finanzen/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
)

// fakeSheets serves the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rest, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	rng, action := rest, ""
	for _, suffix := range []string{":append", ":clear"} {
		if strings.HasSuffix(rest, suffix) {
			rng, action = strings.TrimSuffix(rest, suffix), suffix[1:]
		}
	}
	sheet, cells, _ := strings.Cut(rng, "!")

	var body struct {
		Values [][]any `json:"values"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodGet:
		var col [][]any
		for _, row := range f.sheets[sheet] {
			if len(row) < 5 {
				col = append(col, []any{})
				continue
			}
			col = append(col, []any{row[4]})
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": col})
	case action == "append":
		f.sheets[sheet] = append(f.sheets[sheet], body.Values...)
		n := len(f.sheets[sheet])
		json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": fmt.Sprintf("%s!A%d:E%d", sheet, n, n)},
		})
	case action == "clear":
		f.sheets[sheet][rowNumber(cells)-1] = []any{}
		json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	case r.Method == http.MethodPut:
		f.sheets[sheet][rowNumber(cells)-1] = body.Values[0]
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
	}
}

// rowNumber extracts 7 from "A7:E7".
func rowNumber(cells string) int {
	first, _, _ := strings.Cut(cells, ":")
	n, _ := strconv.Atoi(strings.TrimLeft(first, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	return n
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{sheets: map[string][][]any{
		"2025 Ledger": {{"Datum", "Name", "Kategorie", "Betrag", "ID"}},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewWithOptions(context.Background(), "sheet-1", "Ledger",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return c, fake
}

func TestUpsertAppendsThenUpdates(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	row := ports.Row{
		ID:          "tx-1",
		Date:        time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Name:        "Rewe",
		Category:    "Lebensmittel",
		AmountCents: -4250,
	}

	ref, err := c.Upsert(ctx, row)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "2025 Ledger!A2:E2" {
		t.Errorf("ref = %q", ref)
	}

	row.AmountCents = -5000
	ref, err = c.Upsert(ctx, row)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "2025 Ledger!A2:E2" {
		t.Errorf("second ref = %q, want the same row", ref)
	}

	rows := fake.sheets["2025 Ledger"]
	if len(rows) != 2 || rows[1][3] != "-50.00" {
		t.Fatalf("sheet = %v", rows)
	}
}

func TestUpsertUsesYearOfRow(t *testing.T) {
	c, fake := newTestClient(t)
	row := ports.Row{ID: "tx-9", Date: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), Name: "Silvester", AmountCents: -2000}

	if _, err := c.Upsert(context.Background(), row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(fake.sheets["2024 Ledger"]) != 1 {
		t.Errorf("sheets = %v", fake.sheets)
	}
}

func TestRemove(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()
	row := ports.Row{ID: "tx-1", Date: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), Name: "Kino", AmountCents: -1200}
	if _, err := c.Upsert(ctx, row); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := c.Remove(ctx, 2025, "tx-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := fake.sheets["2025 Ledger"][1]; len(got) != 0 {
		t.Errorf("row not cleared: %v", got)
	}
	if err := c.Remove(ctx, 2025, "missing"); err != nil {
		t.Errorf("Remove(missing) = %v", err)
	}
}

func TestUpsertRejectsRowWithoutID(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.Upsert(context.Background(), ports.Row{Name: "x"}); err == nil {
		t.Fatal("expected error for row without id")
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"  Ledger ", 2025, "2025 Ledger"},
		{"2023 Ledger", 2025, "2023 Ledger"},
		{"", 2025, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestLoadCredentials(t *testing.T) {
	if got, err := LoadCredentials(` {"type":"service_account"} `, ""); err != nil || string(got) != `{"type":"service_account"}` {
		t.Errorf("inline = %q, %v", got, err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := LoadCredentials("", ""); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := LoadCredentials("", "/non/existent/file.json"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsMissingSheet(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing sheet", fmt.Errorf("read: %w", &googleapi.Error{Code: 400, Message: "Unable to parse range: 2024 Ledger!E:E"}), true},
		{"other bad request", &googleapi.Error{Code: 400, Message: "Invalid value"}, false},
		{"forbidden", &googleapi.Error{Code: 403, Message: "Unable to parse range"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMissingSheet(tt.err); got != tt.want {
				t.Errorf("isMissingSheet(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
