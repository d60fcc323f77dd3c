package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/orchestrator"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/deployment"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
)

// DeploymentHandler handles workflow deployment HTTP requests
type DeploymentHandler struct {
	orchestrator *orchestrator.Service
	logger       *zap.Logger
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(orch *orchestrator.Service, logger *zap.Logger) *DeploymentHandler {
	return &DeploymentHandler{
		orchestrator: orch,
		logger:       logger,
	}
}

// DeployResponse wraps a deployment outcome
type DeployResponse struct {
	Outcome *deployment.Outcome `json:"outcome"`
}

// HistoryResponse wraps the attempt history for a profile
type HistoryResponse struct {
	ProfileID string              `json:"profileId"`
	Attempts  []deployment.Record `json:"attempts"`
}

// Deploy handles POST /profiles/{profileID}/deployments.
// It composes the workflow for the profile's current category selection
// and deploys it to the automation engine.
func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if profileID == "" {
		h.respondError(w, appErrors.NewValidationError("profileID is required"))
		return
	}

	outcome, err := h.orchestrator.ComposeAndDeploy(r.Context(), profileID)
	if err != nil {
		h.logger.Warn("Deployment failed",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		h.respondError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.Unchanged {
		status = http.StatusOK
	}
	h.respondJSON(w, status, DeployResponse{Outcome: outcome})
}

// Rollback handles POST /profiles/{profileID}/deployments/rollback.
// It redeploys the last successfully deployed graph for the profile.
func (h *DeploymentHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if profileID == "" {
		h.respondError(w, appErrors.NewValidationError("profileID is required"))
		return
	}

	outcome, err := h.orchestrator.Rollback(r.Context(), profileID)
	if err != nil {
		h.logger.Warn("Rollback failed",
			zap.String("profile_id", profileID),
			zap.Error(err),
		)
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, DeployResponse{Outcome: outcome})
}

// GetHistory handles GET /profiles/{profileID}/deployments
func (h *DeploymentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if profileID == "" {
		h.respondError(w, appErrors.NewValidationError("profileID is required"))
		return
	}

	records, err := h.orchestrator.GetHistory(r.Context(), profileID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if records == nil {
		records = []deployment.Record{}
	}

	h.respondJSON(w, http.StatusOK, HistoryResponse{
		ProfileID: profileID,
		Attempts:  records,
	})
}

// respondJSON sends a JSON response
func (h *DeploymentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError maps application errors onto HTTP responses
func (h *DeploymentHandler) respondError(w http.ResponseWriter, err error) {
	appErr := appErrors.GetAppError(err)
	if appErr == nil {
		appErr = appErrors.NewInternalError("An unexpected error occurred")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": appErr,
	})
}
