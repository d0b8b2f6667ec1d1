package engine

import "github.com/globekit/globekit/internal/core/entity"

// Event types published on the engine bus. These are notifications for
// UI/logging collaborators; no handler return value is expected.
const (
	EventEntityCreated     = "entityCreated"
	EventEntityUpdated     = "entityUpdated"
	EventEntityRemoved     = "entityRemoved"
	EventLODChanged        = "lodChanged"
	EventQualityChanged    = "qualityChanged"
	EventPerformanceUpdate = "performanceUpdate"
)

const eventSource = "engine"

// EntityEvent is the payload of entityCreated/entityUpdated/entityRemoved.
type EntityEvent struct {
	ID      string      `json:"id"`
	LayerID string      `json:"layer_id"`
	Type    entity.Type `json:"type"`
}

// LODEvent is the payload of lodChanged.
type LODEvent struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// QualityEvent is the payload of qualityChanged.
type QualityEvent struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	FPS  float64 `json:"fps"`
}

// PerformanceEvent is the payload of performanceUpdate.
type PerformanceEvent struct {
	Frame      int64   `json:"frame"`
	FPS        float64 `json:"fps"`
	Quality    float64 `json:"quality"`
	Entities   int     `json:"entities"`
	Visible    int     `json:"visible"`
	Dispatched int     `json:"dispatched"`
	PendingOps int     `json:"pending_ops"`
}
