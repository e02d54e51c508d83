package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models/reports"
)

type reconcileRequest struct {
	PendingOnly bool `json:"pending_only"`
}

func (h *Handler) reconcileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reconcileRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		if v := c.Query("pending"); v != "" {
			pending, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "pending must be a boolean"})
				return
			}
			req.PendingOnly = pending
		}

		report, err := h.reconciler.Reconcile(c.Request.Context(), req.PendingOnly)
		if err != nil {
			config.LogError(h.logger, "reconcileHandler.go", "reconcileHandler", "Reconcile", req, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		h.remember(report)
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) lastReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.latestReport()
		if err != nil {
			config.LogError(h.logger, "reconcileHandler.go", "lastReportHandler", "Reading cached report", h.storeId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation report yet"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func (h *Handler) exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.latestReport()
		if err != nil {
			config.LogError(h.logger, "reconcileHandler.go", "exportHandler", "Reading cached report", h.storeId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reconciliation report yet"})
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=reconciliation-%s.xlsx", report.RunId))
		if err := reports.WriteReconciliationExcel(c.Writer, report); err != nil {
			config.LogError(h.logger, "reconcileHandler.go", "exportHandler", "Writing workbook", report.RunId, err)
			c.Status(http.StatusInternalServerError)
		}
	}
}
