package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DTADMI/gamehub-api/internal/features"
	"github.com/DTADMI/gamehub-api/internal/http/middleware"
	"github.com/DTADMI/gamehub-api/internal/identity"
)

// FeatureHandler exposes flag evaluation and the admin toggle.
type FeatureHandler struct {
	Flags  *features.Service
	Logger *zap.Logger
}

// NewFeatureHandler wires dependencies.
func NewFeatureHandler(flags *features.Service, logger *zap.Logger) *FeatureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureHandler{Flags: flags, Logger: logger}
}

// List evaluates every flag for the caller. Anonymous callers get the guest
// evaluation; segmentation applies when an identity is attached.
func (h *FeatureHandler) List(c *gin.Context) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		id = identity.Guest()
	}
	c.JSON(http.StatusOK, gin.H{"features": h.Flags.EvaluateAll(id)})
}

// Toggle sets a runtime override for one flag. Admin only; the override lasts
// until restart.
func (h *FeatureHandler) Toggle(c *gin.Context) {
	flag := c.Param("flag")

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Body must carry an enabled boolean."})
		return
	}

	if err := h.Flags.Toggle(flag, *req.Enabled); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Unknown feature flag."})
		return
	}

	id, _ := middleware.GetIdentity(c)
	h.Logger.Info("feature flag toggled",
		zap.String("flag", flag),
		zap.Bool("enabled", *req.Enabled),
		zap.Int64("admin_id", id.UserID),
	)
	c.JSON(http.StatusOK, gin.H{"flag": flag, "enabled": *req.Enabled})
}
