package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/agri-market/internal/domain/market"
	apperrors "github.com/yanqian/agri-market/pkg/errors"
)

// MarketService is the view contract the HTTP layer renders.
type MarketService interface {
	ListCategories(locale string) []market.CategoryView
	Expand(ctx context.Context, category string) (market.LoadState, error)
	ExpandAsync(ctx context.Context, category string) (market.LoadState, error)
	FilteredRecords(search, state, category string) []market.PriceRecord
	SortedStats() []market.CommodityStat
	Recommendations() []market.Recommendation
	Status() market.Status
	Refresh() uint64
}

// Handler wires the HTTP transport to the market service.
type Handler struct {
	svc    MarketService
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(svc MarketService, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.With("component", "http.handler"),
	}
}

// ListCategories returns the localized taxonomy with load flags.
func (h *Handler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories":    h.svc.ListCategories(c.Query("locale")),
		"usingFallback": h.svc.Status().UsingFallback,
	})
}

// ExpandCategory loads a category. With wait=false the load runs in the background and 202 is returned.
func (h *Handler) ExpandCategory(c *gin.Context) {
	key := c.Param("key")
	wait := true
	if raw := c.Query("wait"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "wait must be a boolean", err))
			return
		}
		wait = parsed
	}

	var (
		state market.LoadState
		err   error
	)
	if wait {
		state, err = h.svc.Expand(c.Request.Context(), key)
	} else {
		state, err = h.svc.ExpandAsync(c.Request.Context(), key)
	}
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeInvalidInput):
			abortWithError(c, NewHTTPError(http.StatusNotFound, "unknown_category", errMessage(err), err))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			abortWithError(c, NewHTTPError(http.StatusServiceUnavailable, "expand_interrupted", "category load was interrupted", err))
		default:
			abortWithError(c, fromAppError(err, "expand_failed"))
		}
		return
	}

	status := http.StatusOK
	if state == market.StateLoading {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"category":      key,
		"state":         state,
		"usingFallback": h.svc.Status().UsingFallback,
	})
}

// ListRecords returns the filtered price store.
func (h *Handler) ListRecords(c *gin.Context) {
	records := h.svc.FilteredRecords(c.Query("search"), c.Query("state"), c.Query("category"))
	c.JSON(http.StatusOK, gin.H{
		"records":       records,
		"count":         len(records),
		"usingFallback": h.svc.Status().UsingFallback,
	})
}

// Stats returns per-commodity aggregates.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":         h.svc.SortedStats(),
		"usingFallback": h.svc.Status().UsingFallback,
	})
}

// Recommendations returns the five ranked lists.
func (h *Handler) Recommendations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"recommendations": h.svc.Recommendations(),
		"usingFallback":   h.svc.Status().UsingFallback,
	})
}

// Status summarizes the session.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// Refresh discards the session data and starts a new generation.
func (h *Handler) Refresh(c *gin.Context) {
	generation := h.svc.Refresh()
	c.JSON(http.StatusOK, gin.H{"generation": generation})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
