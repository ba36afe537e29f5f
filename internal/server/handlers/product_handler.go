package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/auth"
	"github.com/mamadbah2/pantry/internal/service/inventory"
)

// ProductService is the inventory surface exposed over HTTP.
type ProductService interface {
	List(ctx context.Context, collection string) ([]models.ProductView, error)
	Refresh(ctx context.Context, collection string) ([]models.ProductView, error)
	Create(ctx context.Context, collection string, in models.ProductInput) (models.Result, error)
	Update(ctx context.Context, collection string, id models.ProductID, in models.ProductInput) (models.Result, error)
	Delete(ctx context.Context, collection string, id models.ProductID) (models.Result, error)
	Consume(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error)
	Restock(ctx context.Context, collection string, id models.ProductID, amount int) (models.Result, error)
	Reconcile(ctx context.Context, collection string) (inventory.RepairReport, error)
}

// Exporter writes inventory snapshots to the spreadsheet.
type Exporter interface {
	ExportInventory(ctx context.Context, user models.User, collection string, products []models.Product) (int, error)
}

// ProductHandler serves the per-collection product endpoints.
type ProductHandler struct {
	svc      ProductService
	exporter Exporter
	logger   *zap.Logger
}

// NewProductHandler constructs the HTTP handler adapter.
func NewProductHandler(svc ProductService, exporter Exporter, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{svc: svc, exporter: exporter, logger: logger}
}

// List returns the collection; ?refresh=true reloads it from the store first.
func (h *ProductHandler) List(c *gin.Context) {
	list := h.svc.List
	if c.Query("refresh") == "true" {
		list = h.svc.Refresh
	}

	views, err := list(c.Request.Context(), c.Param("collection"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": views})
}

// Create adds a product.
func (h *ProductHandler) Create(c *gin.Context) {
	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.Create(c.Request.Context(), c.Param("collection"), in)
	h.writeResult(c, http.StatusCreated, res, err)
}

// Update replaces the editable fields of a product.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var in models.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.Update(c.Request.Context(), c.Param("collection"), id, in)
	h.writeResult(c, http.StatusOK, res, err)
}

// Delete removes a product.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	res, err := h.svc.Delete(c.Request.Context(), c.Param("collection"), id)
	h.writeResult(c, http.StatusOK, res, err)
}

// Consume records usage of a product.
func (h *ProductHandler) Consume(c *gin.Context) {
	h.adjust(c, h.svc.Consume)
}

// Restock refills a product.
func (h *ProductHandler) Restock(c *gin.Context) {
	h.adjust(c, h.svc.Restock)
}

func (h *ProductHandler) adjust(c *gin.Context, fn func(context.Context, string, models.ProductID, int) (models.Result, error)) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var body models.StockAdjustment
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := fn(c.Request.Context(), c.Param("collection"), id, body.Amount)
	h.writeResult(c, http.StatusOK, res, err)
}

// Reconcile runs the repair pass on a collection.
func (h *ProductHandler) Reconcile(c *gin.Context) {
	report, err := h.svc.Reconcile(c.Request.Context(), c.Param("collection"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Export appends the collection to the inventory spreadsheet.
func (h *ProductHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	views, err := h.svc.List(ctx, c.Param("collection"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	products := make([]models.Product, 0, len(views))
	for _, v := range views {
		products = append(products, v.Product)
	}

	rows, err := h.exporter.ExportInventory(ctx, *auth.CurrentUser(ctx), c.Param("collection"), products)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *ProductHandler) writeResult(c *gin.Context, okStatus int, res models.Result, err error) {
	if err != nil {
		status := statusFor(err)
		if status == http.StatusBadGateway {
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "outcome": res.Outcome, "product": res.Product})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	if res.Outcome != models.OutcomeSaved {
		okStatus = http.StatusAccepted
	}
	c.JSON(okStatus, res)
}

func productID(c *gin.Context) (models.ProductID, bool) {
	id, err := models.ParseProductID(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, "invalid product id")
		return 0, false
	}
	return id, true
}
