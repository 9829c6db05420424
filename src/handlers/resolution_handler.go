// src/handlers/resolution_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	"github.com/kaizhangyahoo/st-my-investment/src/models"
	"github.com/kaizhangyahoo/st-my-investment/src/services"
	"github.com/kaizhangyahoo/st-my-investment/src/utils"
)

type ResolutionHandler struct {
	resolutionService services.ResolutionService
}

func NewResolutionHandler(service services.ResolutionService) *ResolutionHandler {
	return &ResolutionHandler{
		resolutionService: service,
	}
}

type resolveNamesRequest struct {
	Names []string `json:"names"`
}

// HandleResolveNames resolves an ad-hoc list of display names without a file
// upload, returning the same report shape as an upload.
func (h *ResolutionHandler) HandleResolveNames(w http.ResponseWriter, r *http.Request) {
	var req resolveNamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body: expected {\"names\": [...]}", http.StatusBadRequest)
		return
	}
	if len(req.Names) == 0 {
		utils.SendJSONError(w, "No names provided", http.StatusBadRequest)
		return
	}

	report, err := h.resolutionService.ResolveNames(r.Context(), req.Names)
	if err != nil {
		if errors.Is(err, services.ErrResolutionFailed) {
			logger.L.Warn("Name resolution interrupted", "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Ticker resolution interrupted: %v", err), http.StatusServiceUnavailable)
		} else {
			logger.L.Error("Internal error resolving names", "error", err)
			utils.SendJSONError(w, "An internal error occurred while resolving names.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logger.L.Error("Error encoding JSON response for name resolution", "error", err)
	}
}

// HandleGetMappings serves the full persisted name→ticker map with ETag
// support, so dashboards polling it cheaply revalidate.
func (h *ResolutionHandler) HandleGetMappings(w http.ResponseWriter, r *http.Request) {
	snapshot := h.resolutionService.GetMappings()

	etag, err := utils.GenerateETag(snapshot)
	if err != nil {
		logger.L.Error("Error generating ETag for mappings", "error", err)
	} else {
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		logger.L.Error("Error encoding JSON response for mappings", "error", err)
	}
}

// HandleGetUnresolved serves the unresolved residual of the latest run, the
// list a human works through for manual follow-up.
func (h *ResolutionHandler) HandleGetUnresolved(w http.ResponseWriter, r *http.Request) {
	report, found := h.resolutionService.GetLatestReport()
	if !found {
		utils.SendJSONError(w, "No resolution run available yet", http.StatusNotFound)
		return
	}

	unresolved := report.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"unresolved": unresolved}); err != nil {
		logger.L.Error("Error encoding JSON response for unresolved names", "error", err)
	}
}

// HandleGetRecords serves all stored instrument records.
func (h *ResolutionHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.resolutionService.GetRecords()
	if err != nil {
		logger.L.Error("Error retrieving instrument records", "error", err)
		utils.SendJSONError(w, "Error retrieving instrument records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.InstrumentRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		logger.L.Error("Error encoding JSON response for records", "error", err)
	}
}
