package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/db"
	"github.com/fieldops/backend/internal/notify"
	"github.com/fieldops/backend/internal/service"
)

type Handler struct {
	Store      *db.Store
	Dispatch   *service.DispatchEngine
	Outbox     *notify.Outbox
	Automation *service.AutomationService
	Validator  *validator.Validate
	Logger     zerolog.Logger
	AdminKey   string
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Suggest a technician for a work order
// @Tags dispatch
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} models.DispatchScore
// @Failure 404 {object} map[string]any
// @Router /api/dispatch/suggest/{id} [post]
func (h *Handler) DispatchSuggest(c *gin.Context) {
	id := c.Param("id")
	score, err := h.Dispatch.Suggest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Work order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("work_order_id", id).Msg("suggest failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to compute suggestion", err.Error())
		return
	}
	if score == nil {
		writeError(c, http.StatusNotFound, "NO_CANDIDATE", "No eligible technician", nil)
		return
	}
	c.JSON(http.StatusOK, score)
}

// @Summary Auto-assign the best technician to a work order
// @Tags dispatch
// @Produce json
// @Param id path string true "Work order ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/dispatch/auto-assign/{id} [post]
func (h *Handler) DispatchAutoAssign(c *gin.Context) {
	id := c.Param("id")
	ok, err := h.Dispatch.AutoAssign(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Work order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("work_order_id", id).Msg("auto-assign failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to auto-assign", err.Error())
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_CANDIDATE",
				"message": "No eligible technician",
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type QueueRequest struct {
	WorkOrderID    string   `json:"work_order_id" validate:"required"`
	RequiredSkills []string `json:"required_skills"`
}

func (h *Handler) DispatchQueue(c *gin.Context) {
	var req QueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	entry, err := h.Dispatch.AddToQueue(c.Request.Context(), req.WorkOrderID, req.RequiredSkills)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Work order not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to enqueue", err.Error())
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) DispatchQueueList(c *gin.Context) {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListQueueEntries(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list queue", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

type TechnicianLocationRequest struct {
	TechnicianID string   `json:"technician_id" validate:"required"`
	Latitude     *float64 `json:"latitude" validate:"required"`
	Longitude    *float64 `json:"longitude" validate:"required"`
	Status       string   `json:"status" validate:"required,oneof=available in_transit in_service unavailable"`
	WorkOrderID  *string  `json:"work_order_id"`
}

func (h *Handler) TechnicianLocation(c *gin.Context) {
	var req TechnicianLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	err := h.Dispatch.UpdateTechnicianLocation(c.Request.Context(), req.TechnicianID,
		*req.Latitude, *req.Longitude, req.Status, req.WorkOrderID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update location", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) TechniciansList(c *gin.Context) {
	items, err := h.Store.ListActiveTechnicians(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) WorkOrderComplete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Dispatch.CompleteWorkOrder(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Work order not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to complete work order", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) NotificationsList(c *gin.Context) {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListNotifications(c.Request.Context(), status, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list notifications", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Drain the notification outbox once
// @Tags notifications
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/notifications/process [post]
func (h *Handler) NotificationsProcess(c *gin.Context) {
	processed, err := h.Outbox.Drain(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("drain failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Drain failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (h *Handler) AutomationsRunDaily(c *gin.Context) {
	summary, err := h.Automation.RunDaily(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("daily automation failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Daily automation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) AutomationsSegmentClients(c *gin.Context) {
	summary, err := h.Automation.SegmentClients(c.Request.Context())
	if err != nil {
		h.Logger.Error().Err(err).Msg("segmentation failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Segmentation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, summary)
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
