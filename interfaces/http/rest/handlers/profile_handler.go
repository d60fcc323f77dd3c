package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/catalog"
	"github.com/GTP-getaipro/FWIQ-sub012/domain/profile"
	appErrors "github.com/GTP-getaipro/FWIQ-sub012/pkg/errors"
	"github.com/GTP-getaipro/FWIQ-sub012/pkg/utils"
)

// ProfileHandler handles tenant profile HTTP requests
type ProfileHandler struct {
	profiles ports.ProfileRepository
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles ports.ProfileRepository, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   logger,
	}
}

// CreateProfileRequest represents the request body for creating a profile
type CreateProfileRequest struct {
	ProfileID          string            `json:"profileId" validate:"required,min=1,max=128"`
	SelectedCategories []string          `json:"selectedCategories" validate:"required,min=1,dive,min=1"`
	Facts              map[string]string `json:"facts,omitempty"`
	MailboxProvider    string            `json:"mailboxProvider" validate:"required,oneof=gmail outlook"`
}

// UpdateSelectionRequest represents the request body for replacing a
// profile's category selection
type UpdateSelectionRequest struct {
	SelectedCategories []string `json:"selectedCategories" validate:"required,min=1,dive,min=1"`
}

// CreateProfile handles POST /profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, appErrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	prof, err := profile.NewBusinessProfile(
		req.ProfileID,
		toCategoryIDs(req.SelectedCategories),
		req.Facts,
		profile.MailboxProvider(req.MailboxProvider),
	)
	if err != nil {
		h.respondError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	if err := h.profiles.Save(r.Context(), prof); err != nil {
		h.logger.Error("Failed to save profile",
			zap.String("profile_id", req.ProfileID),
			zap.Error(err),
		)
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, prof)
}

// GetProfile handles GET /profiles/{profileID}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	prof, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, prof)
}

// UpdateSelection handles PUT /profiles/{profileID}/categories.
// Replacing the selection does not redeploy; callers follow up with a
// deployment request when ready.
func (h *ProfileHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	var req UpdateSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, appErrors.NewValidationError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	prof, err := h.profiles.Get(r.Context(), profileID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := prof.UpdateSelection(toCategoryIDs(req.SelectedCategories)); err != nil {
		h.respondError(w, appErrors.NewValidationError(err.Error()))
		return
	}

	if err := h.profiles.Save(r.Context(), prof); err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, prof)
}

func toCategoryIDs(ids []string) []catalog.CategoryID {
	out := make([]catalog.CategoryID, len(ids))
	for i, id := range ids {
		out[i] = catalog.CategoryID(id)
	}
	return out
}

func (h *ProfileHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ProfileHandler) respondError(w http.ResponseWriter, err error) {
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
