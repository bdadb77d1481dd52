// Package syncer pulls symbols from the managed external symbol store into
// the local knowledge store, paging by last-seen id.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sigil/internal/logging"
	"sigil/internal/store"
	"sigil/internal/types"
)

// maxPageLimit is the largest page size the external store serves.
const maxPageLimit = 20

// SyncResult summarizes one synchronization run.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	New     int `json:"new"`
	Updated int `json:"updated"`
	Pages   int `json:"pages"`
}

// Client talks to the external symbol store over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// QuerySymbols fetches one page of symbols. Entries that fail to decode are
// skipped with a warning.
func (c *Client) QuerySymbols(ctx context.Context, domain, tag, lastSymbolID string, limit int) ([]*types.Symbol, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if domain != "" {
		params.Set("symbol_domain", domain)
	}
	if tag != "" {
		params.Set("symbol_tag", tag)
	}
	if lastSymbolID != "" {
		params.Set("last_symbol_id", lastSymbolID)
	}

	body, err := c.get(ctx, "/symbol", params)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unexpected response format from external store: %w", err)
	}

	var symbols []*types.Symbol
	for i, item := range items {
		var sym types.Symbol
		if err := json.Unmarshal(item, &sym); err != nil || sym.ID == "" {
			logging.Get(logging.CategorySync).Warn("Skipping invalid symbol at index %d in sync page", i)
			continue
		}
		symbols = append(symbols, &sym)
	}

	logging.SyncDebug("QuerySymbols: requested=%d returned=%d", limit, len(symbols))
	return symbols, nil
}

// ListDomains fetches every domain the external store serves.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/domains", nil)
	if err != nil {
		return nil, err
	}

	var domains []string
	if err := json.Unmarshal(body, &domains); err != nil {
		return nil, fmt.Errorf("unexpected response format from external store: %w", err)
	}
	return domains, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logging.Get(logging.CategorySync).Error("External store request failed: %v", err)
		return nil, fmt.Errorf("external store request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external store returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Sync pages through the external store and bulk-writes each page into the
// local store, counting new versus updated ids along the way.
func Sync(ctx context.Context, client *Client, st *store.SymbolStore, domain, tag string, limit int) (SyncResult, error) {
	timer := logging.StartTimer(logging.CategorySync, "Sync")
	defer timer.Stop()

	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	var result SyncResult
	lastSymbolID := ""

	for {
		batch, err := client.QuerySymbols(ctx, domain, tag, lastSymbolID, limit)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		result.Pages++
		result.Fetched += len(batch)

		ids := make([]string, len(batch))
		for i, sym := range batch {
			ids[i] = sym.ID
		}
		existing, err := st.GetMany(ids)
		if err != nil {
			return result, err
		}
		existingIDs := make(map[string]bool, len(existing))
		for _, sym := range existing {
			existingIDs[sym.ID] = true
		}
		for _, id := range ids {
			if existingIDs[id] {
				result.Updated++
			} else {
				result.New++
			}
		}

		if err := st.PutBulk(ctx, batch); err != nil {
			return result, err
		}
		result.Stored += len(batch)

		lastSymbolID = batch[len(batch)-1].ID
		if len(batch) < limit {
			break
		}
	}

	logging.Sync("Sync complete: fetched=%d stored=%d new=%d updated=%d pages=%d",
		result.Fetched, result.Stored, result.New, result.Updated, result.Pages)
	return result, nil
}
