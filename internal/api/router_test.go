package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bidding-system/internal/api/handlers"
	"bidding-system/internal/infrastructure/memory"
	"bidding-system/internal/infrastructure/websocket"
	"bidding-system/internal/services"
	"bidding-system/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiddingRouter(t *testing.T) {
	log := logger.NewNop()
	store := memory.NewPriceStore()
	broadcaster := services.NewBroadcaster(4, services.DropOldest, 0, log)
	defer broadcaster.Close()
	committer := services.NewBidCommitter(store, services.NewItemSequencer(),
		services.NewIncrementValidator(10), broadcaster, log)
	gateway := websocket.NewSessionGateway(committer, store, broadcaster, websocket.NewConnectionManager(log), log)

	router := NewBiddingRouter(handlers.NewWebSocketHandlers(gateway),
		handlers.NewHealthHandler("bidding-service", nil, nil), log)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/ws/bids", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	// a plain GET without upgrade headers is refused by the upgrader
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/bids", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemAPI(t *testing.T) {
	log := logger.NewNop()
	store := memory.NewPriceStore()
	e := NewItemAPI(handlers.NewItemHandler(store, nil, log), handlers.NewHealthHandler("item-service", nil, nil), log)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(`{"item_id":"X","starting_price":50}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/X", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_price":50`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
