package handlers

import (
	"errors"
	"net/http"

	"resto_platform_backend/internal/services"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// PresetHandler holds the preset service.
type PresetHandler struct {
	presetService services.PresetService
}

// NewPresetHandler creates a new PresetHandler.
func NewPresetHandler(ps services.PresetService) *PresetHandler {
	return &PresetHandler{presetService: ps}
}

func respondPresetError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, services.ErrPresetNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Preset not found.", ""))
	case errors.Is(err, services.ErrPresetSchedule), errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, err.Error(), ""))
	default:
		utils.LogError(err, action)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Internal server error.", "Internal error"))
	}
}

// CreatePreset creates a preset, optionally capturing the active catalog.
func (h *PresetHandler) CreatePreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	var req services.CreatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	preset, err := h.presetService.CreatePreset(p, branchID, req)
	if err != nil {
		respondPresetError(c, err, "CreatePreset: Error from presetService.CreatePreset")
		return
	}
	c.JSON(http.StatusCreated, preset)
}

// GetPreset returns one preset.
func (h *PresetHandler) GetPreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	presetID, ok := pathID(c, "presetID")
	if !ok {
		return
	}

	preset, err := h.presetService.GetPreset(p, branchID, presetID)
	if err != nil {
		respondPresetError(c, err, "GetPreset: Error from presetService.GetPreset")
		return
	}
	c.JSON(http.StatusOK, preset)
}

// ListPresets lists the branch's presets.
func (h *PresetHandler) ListPresets(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	presets, err := h.presetService.ListPresets(p, branchID)
	if err != nil {
		respondPresetError(c, err, "ListPresets: Error from presetService.ListPresets")
		return
	}
	c.JSON(http.StatusOK, presets)
}

// UpdatePreset edits a preset's selection or schedule.
func (h *PresetHandler) UpdatePreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	presetID, ok := pathID(c, "presetID")
	if !ok {
		return
	}
	var req services.UpdatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationFailed(c, err.Error())
		return
	}

	preset, err := h.presetService.UpdatePreset(p, branchID, presetID, req)
	if err != nil {
		respondPresetError(c, err, "UpdatePreset: Error from presetService.UpdatePreset")
		return
	}
	c.JSON(http.StatusOK, preset)
}

// DeletePreset removes a preset, restoring the catalog if it was active.
func (h *PresetHandler) DeletePreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	presetID, ok := pathID(c, "presetID")
	if !ok {
		return
	}

	if err := h.presetService.DeletePreset(p, branchID, presetID); err != nil {
		respondPresetError(c, err, "DeletePreset: Error from presetService.DeletePreset")
		return
	}
	c.Status(http.StatusNoContent)
}

// ApplyPreset activates the preset, reducing the catalog to its selection.
func (h *PresetHandler) ApplyPreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}
	presetID, ok := pathID(c, "presetID")
	if !ok {
		return
	}

	preset, err := h.presetService.ApplyPreset(p, branchID, presetID)
	if err != nil {
		respondPresetError(c, err, "ApplyPreset: Error from presetService.ApplyPreset")
		return
	}
	c.JSON(http.StatusOK, preset)
}

// DeactivatePreset clears the active preset and restores the full catalog.
func (h *PresetHandler) DeactivatePreset(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	branchID, ok := pathID(c, "branchID")
	if !ok {
		return
	}

	if err := h.presetService.DeactivatePreset(p, branchID); err != nil {
		respondPresetError(c, err, "DeactivatePreset: Error from presetService.DeactivatePreset")
		return
	}
	c.Status(http.StatusNoContent)
}
