package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/utils"
	"github.com/sirupsen/logrus"
)

type linkRequest struct {
	OriginalName string          `json:"original_name" binding:"required"`
	CatalogId    int             `json:"catalog_id" binding:"required,gt=0"`
	Category     models.Category `json:"category" binding:"required"`
}

func (h *Handler) linkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req linkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		ctx := c.Request.Context()
		delta, err := h.reconciler.LinkProduct(ctx, req.OriginalName, req.CatalogId, req.Category)
		if err != nil {
			config.LogError(h.logger, "catalogHandler.go", "linkHandler", "LinkProduct", req, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		operator, _ := utils.GetUserNameFromContext(ctx)
		h.logger.WithFields(logrus.Fields{
			"field":            "linkHandler",
			"operator":         operator,
			"product_name":     req.OriginalName,
			"category":         req.Category,
			"catalog_entry_id": req.CatalogId,
		}).Info("manual link applied")
		c.JSON(http.StatusOK, delta)
	}
}

func (h *Handler) registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NewCatalogEntry
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		entry, err := h.reconciler.RegisterCatalogEntry(c.Request.Context(), req.Name, req.Category, req.InitialStock)
		if err != nil {
			config.LogError(h.logger, "catalogHandler.go", "registerHandler", "RegisterCatalogEntry", req, err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}
