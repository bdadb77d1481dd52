package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"sigil/internal/store"
	"sigil/internal/types"
)

func newTestStore(t *testing.T) *store.SymbolStore {
	t.Helper()
	st, err := store.NewSymbolStore(":memory:")
	if err != nil {
		t.Fatalf("NewSymbolStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// pagedServer serves n symbols through the /symbol paging protocol.
func pagedServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	all := make([]map[string]string, total)
	for i := range all {
		all[i] = map[string]string{"id": fmt.Sprintf("sym.%03d", i), "symbol_domain": "remote"}
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/symbol":
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			if limit <= 0 || limit > 20 {
				t.Errorf("limit out of range: %d", limit)
			}
			start := 0
			if last := r.URL.Query().Get("last_symbol_id"); last != "" {
				for i, sym := range all {
					if sym["id"] == last {
						start = i + 1
						break
					}
				}
			}
			end := start + limit
			if end > len(all) {
				end = len(all)
			}
			json.NewEncoder(w).Encode(all[start:end])
		case "/domains":
			json.NewEncoder(w).Encode([]string{"remote", "shared"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSyncPagesThroughAllSymbols(t *testing.T) {
	srv := pagedServer(t, 45)
	defer srv.Close()

	st := newTestStore(t)
	client := NewClient(srv.URL, 5*time.Second)

	result, err := Sync(context.Background(), client, st, "", "", 20)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if result.Fetched != 45 || result.Stored != 45 {
		t.Errorf("fetched=%d stored=%d, want 45/45", result.Fetched, result.Stored)
	}
	if result.Pages != 3 {
		t.Errorf("pages = %d, want 3", result.Pages)
	}
	if result.New != 45 || result.Updated != 0 {
		t.Errorf("new=%d updated=%d", result.New, result.Updated)
	}

	all, err := st.List("remote", "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 45 {
		t.Errorf("store holds %d symbols, want 45", len(all))
	}
}

func TestSyncCountsUpdatedSymbols(t *testing.T) {
	srv := pagedServer(t, 5)
	defer srv.Close()

	st := newTestStore(t)
	if err := st.Put(context.Background(), &types.Symbol{ID: "sym.001"}); err != nil {
		t.Fatal(err)
	}

	result, err := Sync(context.Background(), NewClient(srv.URL, 5*time.Second), st, "", "", 20)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.New != 4 || result.Updated != 1 {
		t.Errorf("new=%d updated=%d, want 4/1", result.New, result.Updated)
	}
}

func TestSyncCapsPageLimit(t *testing.T) {
	// The server test hook rejects limits over 20; a caller asking for 100
	// must be clamped.
	srv := pagedServer(t, 3)
	defer srv.Close()

	st := newTestStore(t)
	if _, err := Sync(context.Background(), NewClient(srv.URL, 5*time.Second), st, "", "", 100); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestQuerySymbolsSkipsInvalidEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "sym.ok"}, {"name": "missing id"}, "not an object"]`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, 5*time.Second).QuerySymbols(context.Background(), "", "", "", 20)
	if err != nil {
		t.Fatalf("QuerySymbols: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sym.ok" {
		t.Errorf("invalid entries should be skipped: %+v", got)
	}
}

func TestQuerySymbolsForwardsFilters(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"symbol_domain":  r.URL.Query().Get("symbol_domain"),
			"symbol_tag":     r.URL.Query().Get("symbol_tag"),
			"last_symbol_id": r.URL.Query().Get("last_symbol_id"),
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).QuerySymbols(context.Background(), "core", "seed", "sym.z", 10)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery["symbol_domain"] != "core" || gotQuery["symbol_tag"] != "seed" || gotQuery["last_symbol_id"] != "sym.z" {
		t.Errorf("filters not forwarded: %v", gotQuery)
	}
}

func TestListDomains(t *testing.T) {
	srv := pagedServer(t, 0)
	defer srv.Close()

	domains, err := NewClient(srv.URL, 5*time.Second).ListDomains(context.Background())
	if err != nil {
		t.Fatalf("ListDomains: %v", err)
	}
	if len(domains) != 2 || domains[0] != "remote" {
		t.Errorf("domains = %v", domains)
	}
}

func TestSyncPropagatesServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	st := newTestStore(t)
	if _, err := Sync(context.Background(), NewClient(srv.URL, 5*time.Second), st, "", "", 20); err == nil {
		t.Error("expected error on server failure")
	}
}
