package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/mmdatafocus/gelato_backoffice/workflow"
	"github.com/sirupsen/logrus"
)

// Reconciler is the part of workflow.ReconciliationWorkflow the HTTP surface uses.
type Reconciler interface {
	Reconcile(ctx context.Context, pendingOnly bool) (*workflow.Report, error)
	LinkProduct(ctx context.Context, originalName string, catalogId int, category models.Category) (*workflow.StockDelta, error)
	RegisterCatalogEntry(ctx context.Context, name string, category models.Category, initialStock int) (*models.CatalogEntry, error)
}

type Handler struct {
	reconciler Reconciler
	storeId    string
	logger     *logrus.Logger
	// LastReport reads the shared report cache; nil or empty results fall back
	// to the last report produced by this process.
	LastReport func(storeId string) (*workflow.Report, error)

	mu   sync.Mutex
	last *workflow.Report
}

func New(reconciler Reconciler, storeId string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Handler{
		reconciler: reconciler,
		storeId:    storeId,
		logger:     logger,
		LastReport: workflow.LastReport,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/reconcile", h.reconcileHandler())
	r.GET("/reconcile/last", h.lastReportHandler())
	r.GET("/reconcile/export", h.exportHandler())
	r.POST("/catalog/link", h.linkHandler())
	r.POST("/catalog", h.registerHandler())
	r.POST("/pubsub", h.pubSubHandler())
}

func (h *Handler) remember(report *workflow.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = report
}

func (h *Handler) latestReport() (*workflow.Report, error) {
	if h.LastReport != nil {
		report, err := h.LastReport(h.storeId)
		if err != nil {
			return nil, err
		}
		if report != nil {
			return report, nil
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, nil
}

// statusFor maps workflow errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrEmptyProductName),
		errors.Is(err, workflow.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrCatalogEntryNotFound),
		errors.Is(err, workflow.ErrNoPendingConference):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrDuplicateCatalogEntry),
		errors.Is(err, workflow.ErrRunInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
