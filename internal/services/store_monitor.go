package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"bidding-system/internal/domain"
	"bidding-system/pkg/logger"
)

const defaultProbeItemID = "__store_probe__"

// StoreMonitor turns sustained price store failures into a degraded flag.
// Single failed calls are normal proposal-level rejections; the flag only
// trips after threshold consecutive failures and clears on the next success.
type StoreMonitor struct {
	store       domain.PriceStore
	probeItemID string
	threshold   int
	now         func() time.Time
	log         logger.Logger

	mu          sync.RWMutex
	consecutive int
	degraded    bool
	lastErr     error
	lastProbe   time.Time
}

// StoreStatus is a point-in-time view used by health endpoints.
type StoreStatus struct {
	Degraded            bool      `json:"degraded"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastProbe           time.Time `json:"last_probe,omitempty"`
}

func NewStoreMonitor(store domain.PriceStore, probeItemID string, threshold int, log logger.Logger) *StoreMonitor {
	if threshold <= 0 {
		threshold = 3
	}
	if probeItemID == "" {
		probeItemID = defaultProbeItemID
	}
	return &StoreMonitor{
		store:       store,
		probeItemID: probeItemID,
		threshold:   threshold,
		now:         time.Now,
		log:         log,
	}
}

func (m *StoreMonitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.degraded {
		m.log.Info("Price store recovered", "after_failures", m.consecutive)
	}
	m.consecutive = 0
	m.degraded = false
	m.lastErr = nil
}

func (m *StoreMonitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutive++
	m.lastErr = err
	if !m.degraded && m.consecutive >= m.threshold {
		m.degraded = true
		m.log.Error("Price store degraded", "consecutive_failures", m.consecutive, "error", err)
	}
}

func (m *StoreMonitor) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// Probe issues one read against the store. An unknown probe item still counts
// as a healthy round trip.
func (m *StoreMonitor) Probe(ctx context.Context) error {
	_, _, err := m.store.ReadPrice(ctx, m.probeItemID)

	m.mu.Lock()
	m.lastProbe = m.now()
	m.mu.Unlock()

	if err == nil || errors.Is(err, domain.ErrItemNotFound) {
		m.RecordSuccess()
		return nil
	}
	m.RecordFailure(err)
	return err
}

func (m *StoreMonitor) Status() StoreStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := StoreStatus{
		Degraded:            m.degraded,
		ConsecutiveFailures: m.consecutive,
		LastProbe:           m.lastProbe,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}
