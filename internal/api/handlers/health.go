package handlers

import (
	"net/http"

	"github.com/cloo-solutions/docchat/internal/api"
)

// Availability reports whether a backing component is usable.
type Availability interface {
	Available() bool
}

type HealthHandler struct {
	vectorIndex Availability
}

func NewHealthHandler(vectorIndex Availability) *HealthHandler {
	return &HealthHandler{vectorIndex: vectorIndex}
}

type HealthResponse struct {
	Status      string `json:"status"`
	VectorIndex string `json:"vector_index"`
}

// Health always answers 200 while the process serves requests; a missing
// vector index degrades chat to the chunk fallback rather than failing it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", VectorIndex: "available"}
	if h.vectorIndex == nil || !h.vectorIndex.Available() {
		resp.Status = "degraded"
		resp.VectorIndex = "unavailable"
	}
	api.Success(w, http.StatusOK, resp)
}
