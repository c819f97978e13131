package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/cadms/dashcache/client"
	"github.com/cadms/dashcache/coordinator"
	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/persist"
)

func newHandlers(cl *client.Client, coord *coordinator.Coordinator, bridge *persist.Bridge) *handlers {
	return &handlers{
		client: cl,
		coord:  coord,
		bridge: bridge,
	}
}

type handlers struct {
	client *client.Client
	coord  *coordinator.Coordinator
	bridge *persist.Bridge
}

func (h *handlers) DashboardHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	data, err := h.client.Dashboard(req.Context(), userID)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) SystemOverviewHandler(res http.ResponseWriter, req *http.Request) {
	data, err := h.client.SystemOverview(req.Context())
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) UserStatisticsHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	data, err := h.client.UserStatistics(req.Context(), userID)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) ActionableItemsHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	data, err := h.client.ActionableItems(req.Context(), userID)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) ActivityFeedHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	data, err := h.client.ActivityFeed(req.Context(), userID)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) PersonalizationHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	data, err := h.client.Personalization(req.Context(), userID)
	if err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, data)
}

func (h *handlers) UpdatePersonalizationHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]

	var p gateway.Personalization
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		http.Error(res, "invalid personalization payload", http.StatusBadRequest)
		return
	}
	if err := h.client.UpdatePersonalization(req.Context(), userID, &p); err != nil {
		writeError(res, err)
		return
	}
	writeJSON(res, &p)
}

func (h *handlers) RefreshAllHandler(res http.ResponseWriter, req *http.Request) {
	userID := mux.Vars(req)["userID"]
	if err := h.client.RefreshAll(req.Context(), userID); err != nil {
		writeError(res, err)
		return
	}
	res.WriteHeader(http.StatusNoContent)
}

func (h *handlers) StatsHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, h.coord.Stats())
}

func (h *handlers) ClearHandler(res http.ResponseWriter, req *http.Request) {
	h.coord.ClearAll()
	res.WriteHeader(http.StatusNoContent)
}

func (h *handlers) OptimizeHandler(res http.ResponseWriter, req *http.Request) {
	var cfg coordinator.OptimizeConfig
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		http.Error(res, "invalid optimize config", http.StatusBadRequest)
		return
	}
	h.coord.Optimize(cfg)
	writeJSON(res, h.coord.Stats())
}

type invalidateRequest struct {
	Pattern       string `json:"pattern"`
	MaxAgeSeconds int    `json:"maxAgeSeconds"`
}

func (h *handlers) InvalidateHandler(res http.ResponseWriter, req *http.Request) {
	var r invalidateRequest
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		http.Error(res, "invalid invalidate request", http.StatusBadRequest)
		return
	}

	count := 0
	switch {
	case r.Pattern != "":
		count = h.coord.InvalidateByPattern(r.Pattern)
	case r.MaxAgeSeconds > 0:
		count = h.coord.InvalidateStale(time.Duration(r.MaxAgeSeconds) * time.Second)
	default:
		http.Error(res, "pattern or maxAgeSeconds required", http.StatusBadRequest)
		return
	}

	writeJSON(res, map[string]int{"invalidated": count})
}

func (h *handlers) PreloadStatusHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, h.coord.PreloadStatuses())
}

func (h *handlers) PersistSaveHandler(res http.ResponseWriter, req *http.Request) {
	if h.bridge == nil {
		http.Error(res, "persistence not configured", http.StatusConflict)
		return
	}
	count := h.bridge.Save()
	writeJSON(res, map[string]any{
		"saved":        count,
		"enabled":      h.bridge.Enabled(),
		"storageError": h.bridge.StorageError(),
	})
}

func (h *handlers) PersistClearHandler(res http.ResponseWriter, req *http.Request) {
	if h.bridge == nil {
		http.Error(res, "persistence not configured", http.StatusConflict)
		return
	}
	h.bridge.Clear()
	res.WriteHeader(http.StatusNoContent)
}

func writeJSON(res http.ResponseWriter, data any) {
	res.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(res).Encode(data); err != nil {
		log.Errorf("failed to write response: %s", err)
	}
}

// writeError maps gateway errors onto response codes: caller mistakes
// become 400s, everything else surfaces as a bad gateway.
func writeError(res http.ResponseWriter, err error) {
	switch {
	case gateway.IsParameter(err):
		http.Error(res, err.Error(), http.StatusBadRequest)
	case gateway.IsValidation(err):
		http.Error(res, err.Error(), http.StatusBadGateway)
	case gateway.IsTransient(err):
		http.Error(res, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(res, err.Error(), http.StatusBadGateway)
	}
}
