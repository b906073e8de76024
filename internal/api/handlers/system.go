package handlers

import (
	"net/http"

	"github.com/ndewijer/portfolio-valuation-backend/internal/api/request"
	"github.com/ndewijer/portfolio-valuation-backend/internal/api/response"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

// Health checks the health of the system and database connectivity
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.systemService.CheckHealth(r.Context()); err != nil {
		response.RespondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
			Error:    "database unreachable",
		})
		return
	}

	response.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "connected",
	})
}

// Version handles GET requests to retrieve version information and feature availability.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with model.VersionInfo
// Error: 500 Internal Server Error if version check fails
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	version, err := h.systemService.GetVersionInfo(r.Context())
	if err != nil {
		respondServiceError(w, r, "failed to get version information", err)
		return
	}

	response.RespondJSON(w, http.StatusOK, version)
}

// SetProviderKey handles PUT requests storing the market-data API key.
// The key is encrypted before it is written and never returned.
//
// Endpoint: PUT /api/system/provider-key
// Request Body: SetProviderKeyRequest
// Response: 204 No Content
// Error: 400 Bad Request if the key is empty
// Error: 500 Internal Server Error if no encryption key is configured
func (h *SystemHandler) SetProviderKey(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SetProviderKeyRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := h.systemService.SetProviderKey(r.Context(), req.APIKey); err != nil {
		respondServiceError(w, r, "failed to store provider key", err)
		return
	}

	response.RespondNoContent(w)
}
