package scheduler

import (
	"sync"

	"github.com/j-veylop/glm-tray/internal/models"
)

// StatusBoard holds the runtime status of every slot behind a single lock.
type StatusBoard struct {
	status models.RuntimeStatus
	mu     sync.RWMutex
}

// NewStatusBoard returns an idle board.
func NewStatusBoard() *StatusBoard {
	return &StatusBoard{status: models.NewRuntimeStatus()}
}

// Snapshot returns a deep copy of the current status.
func (b *StatusBoard) Snapshot() models.RuntimeStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status.Clone()
}

// Slot returns a copy of one slot status.
func (b *StatusBoard) Slot(idx int) models.SlotRuntimeStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status.Slots[idx].Clone()
}

// Update mutates one slot status under the write lock.
func (b *StatusBoard) Update(idx int, fn func(*models.SlotRuntimeStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.status.Slots[idx])
	b.status.Slots[idx].Slot = idx + 1
}

// ResetSlot clears one slot back to its idle state.
func (b *StatusBoard) ResetSlot(idx int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Slots[idx] = models.SlotRuntimeStatus{Slot: idx + 1}
}

// Reset clears every slot and the monitoring flag.
func (b *StatusBoard) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = models.NewRuntimeStatus()
}

// SetMonitoring records whether the engine is running.
func (b *StatusBoard) SetMonitoring(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Monitoring = on
}
