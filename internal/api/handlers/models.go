package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/doctorhouse/internal/llm"
)

// ModelLister is the part of llm.Gateway the models endpoint needs.
type ModelLister interface {
	ListModels() []llm.ModelInfo
}

type ModelsHandler struct {
	models ModelLister
}

func NewModelsHandler(models ModelLister) *ModelsHandler {
	return &ModelsHandler{models: models}
}

// List reports the providers and models the gateway can route to.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	models := h.models.ListModels()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}
