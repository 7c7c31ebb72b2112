package handlers

import (
	"errors"
	"net/http"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ItemHandler seeds and inspects items. Bids never go through here.
type ItemHandler struct {
	catalog domain.ItemCatalog
	history domain.BidRepository
	log     logger.Logger
}

type CreateItemRequest struct {
	ItemID        string `json:"item_id"`
	StartingPrice int64  `json:"starting_price"`
}

type ItemResponse struct {
	ItemID       string    `json:"item_id"`
	CurrentPrice int64     `json:"current_price"`
	Version      uint64    `json:"version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type BidHistoryEntry struct {
	BidderID       string    `json:"bidder_id"`
	Amount         int64     `json:"amount"`
	SequenceNumber uint64    `json:"sequence_number"`
	AcceptedAt     time.Time `json:"accepted_at"`
}

// NewItemHandler takes an optional history repository; without one the
// history route answers 404.
func NewItemHandler(catalog domain.ItemCatalog, history domain.BidRepository, log logger.Logger) *ItemHandler {
	return &ItemHandler{
		catalog: catalog,
		history: history,
		log:     log,
	}
}

// Register mounts the item routes on g, normally the /api/v1 group.
func (h *ItemHandler) Register(g *echo.Group) {
	g.POST("/items", h.CreateItem)
	g.GET("/items/:id", h.GetItem)
	g.GET("/items/:id/bids", h.GetBidHistory)
}

func (h *ItemHandler) CreateItem(c echo.Context) error {
	var req CreateItemRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.ItemID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "item_id is required"})
	}
	if req.StartingPrice < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "starting_price must not be negative"})
	}

	item, err := h.catalog.CreateItem(c.Request().Context(), req.ItemID, req.StartingPrice)
	if err != nil {
		if errors.Is(err, domain.ErrItemExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Item already exists"})
		}
		h.log.Error("Failed to create item", "item_id", req.ItemID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create item"})
	}

	h.log.Info("Item created", "item_id", item.ID, "starting_price", item.CurrentPrice)
	return c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemHandler) GetItem(c echo.Context) error {
	itemID := c.Param("id")

	item, err := h.catalog.GetItem(c.Request().Context(), itemID)
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Item not found"})
		}
		h.log.Error("Failed to get item", "item_id", itemID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Store unavailable"})
	}

	return c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) GetBidHistory(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Bid history not available"})
	}

	itemID := c.Param("id")
	records, err := h.history.GetBidHistory(c.Request().Context(), itemID)
	if err != nil {
		h.log.Error("Failed to get bid history", "item_id", itemID, "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Store unavailable"})
	}

	entries := make([]BidHistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, BidHistoryEntry{
			BidderID:       r.BidderID,
			Amount:         r.Amount,
			SequenceNumber: r.SequenceNumber,
			AcceptedAt:     r.AcceptedAt,
		})
	}
	return c.JSON(http.StatusOK, entries)
}

func toItemResponse(item *domain.Item) ItemResponse {
	return ItemResponse{
		ItemID:       item.ID,
		CurrentPrice: item.CurrentPrice,
		Version:      item.Version,
		UpdatedAt:    item.UpdatedAt,
	}
}
