package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/internal/infrastructure/memory"
	"bidding-system/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHistory struct {
	records []*domain.AuditRecord
}

func (s *stubHistory) SaveAcceptedBid(context.Context, *domain.AuditRecord) error { return nil }

func (s *stubHistory) GetBidHistory(_ context.Context, itemID string) ([]*domain.AuditRecord, error) {
	var out []*domain.AuditRecord
	for _, r := range s.records {
		if r.ItemID == itemID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newItemServer(t *testing.T, history domain.BidRepository) (*echo.Echo, *memory.PriceStore) {
	t.Helper()
	store := memory.NewPriceStore()
	h := NewItemHandler(store, history, logger.NewNop())

	e := echo.New()
	h.Register(e.Group("/api/v1"))
	return e, store
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestItemHandler_CreateAndGet(t *testing.T) {
	e, store := newItemServer(t, nil)

	rec := serve(e, http.MethodPost, "/api/v1/items", `{"item_id":"X","starting_price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "X", created.ItemID)
	assert.Equal(t, int64(100), created.CurrentPrice)

	_, err := store.ConditionalSetPrice(context.Background(), "X", 110, 0)
	require.NoError(t, err)

	rec = serve(e, http.MethodGet, "/api/v1/items/X", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got ItemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(110), got.CurrentPrice)
	assert.Equal(t, uint64(1), got.Version)
}

func TestItemHandler_CreateErrors(t *testing.T) {
	e, _ := newItemServer(t, nil)
	require.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/api/v1/items", `{"item_id":"X","starting_price":1}`).Code)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"duplicate", `{"item_id":"X","starting_price":1}`, http.StatusConflict},
		{"missing id", `{"starting_price":1}`, http.StatusBadRequest},
		{"negative price", `{"item_id":"Y","starting_price":-1}`, http.StatusBadRequest},
		{"malformed", `{"item_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, serve(e, http.MethodPost, "/api/v1/items", tt.body).Code)
		})
	}
}

func TestItemHandler_GetMissing(t *testing.T) {
	e, _ := newItemServer(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/v1/items/nope", "").Code)
}

func TestItemHandler_BidHistory(t *testing.T) {
	accepted := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	history := &stubHistory{records: []*domain.AuditRecord{
		{ItemID: "X", BidderID: "alice", Amount: 110, SequenceNumber: 1, AcceptedAt: accepted},
		{ItemID: "X", BidderID: "bob", Amount: 120, SequenceNumber: 2, AcceptedAt: accepted},
	}}
	e, _ := newItemServer(t, history)

	rec := serve(e, http.MethodGet, "/api/v1/items/X/bids", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []BidHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[1].BidderID)
	assert.Equal(t, uint64(2), entries[1].SequenceNumber)

	rec = serve(e, http.MethodGet, "/api/v1/items/Z/bids", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestItemHandler_BidHistoryUnavailable(t *testing.T) {
	e, _ := newItemServer(t, nil)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/v1/items/X/bids", "").Code)
}
