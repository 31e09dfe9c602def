package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krasl809/tradedesk/internal/http/middleware"
	"github.com/krasl809/tradedesk/internal/model"
	"github.com/krasl809/tradedesk/internal/pricing"
	"github.com/krasl809/tradedesk/internal/service"
)

type Handler struct {
	contracts *service.ContractService
	hub       *PresenceHub
	log       zerolog.Logger
}

func NewHandler(contracts *service.ContractService, hub *PresenceHub, log zerolog.Logger) *Handler {
	return &Handler{contracts: contracts, hub: hub, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)
	protected.POST("/contracts/", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.PUT("/contracts/:id", h.updateContract)
	protected.POST("/contracts/:id/partial-price", h.partialPrice)
	protected.POST("/contracts/:id/approve-pricing", h.approvePricing)
	protected.GET("/contracts/:id/statement", h.statement)
	protected.POST("/contracts/:id/statement/export", h.exportStatementExcel)
	protected.POST("/contracts/:id/statement/export/pdf", h.exportStatementPDF)

	// WebSocket auth rides on the query token; browsers cannot set
	// headers on ws upgrades.
	router.GET("/ws/presence", h.hub.Serve)
}

type contractItemPayload struct {
	ID          string  `json:"id"`
	ArticleID   string  `json:"article_id" binding:"required"`
	QtyTon      float64 `json:"qty_ton" binding:"required"`
	Price       float64 `json:"price"`
	Premium     float64 `json:"premium"`
	PricingMode string  `json:"pricing_mode"`
}

type createContractRequest struct {
	Number    string                `json:"contract_number" binding:"required"`
	Direction string                `json:"direction" binding:"required"`
	SellerID  *string               `json:"seller_id"`
	BuyerID   *string               `json:"buyer_id"`
	Incoterm  string                `json:"incoterm"`
	Currency  string                `json:"currency"`
	Items     []contractItemPayload `json:"items"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	direction, err := parseDirection(req.Direction)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": gin.H{"direction": "must be export or import"}})
		return
	}
	items, err := parseItems(req.Items)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": gin.H{"items": err.Error()}})
		return
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		Number:    req.Number,
		Direction: direction,
		SellerID:  parseOptionalUUID(req.SellerID),
		BuyerID:   parseOptionalUUID(req.BuyerID),
		Incoterm:  req.Incoterm,
		Currency:  req.Currency,
		Items:     items,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contractResponse(contract))
}

func (h *Handler) getContract(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, contractResponse(contract))
}

type updateContractRequest struct {
	Version  int64                 `json:"version" binding:"required"`
	SellerID *string               `json:"seller_id"`
	BuyerID  *string               `json:"buyer_id"`
	Incoterm string                `json:"incoterm"`
	Currency string                `json:"currency"`
	Items    []contractItemPayload `json:"items"`
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := parseItems(req.Items)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": gin.H{"items": err.Error()}})
		return
	}

	result, err := h.contracts.UpdateContract(c.Request.Context(), service.UpdateContractInput{
		ID:        id,
		Version:   req.Version,
		SellerID:  parseOptionalUUID(req.SellerID),
		BuyerID:   parseOptionalUUID(req.BuyerID),
		Incoterm:  req.Incoterm,
		Currency:  req.Currency,
		Items:     items,
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version":       result.Version,
		"modified_date": result.ModifiedDate,
	})
}

type partialPriceRequest struct {
	ItemID      string  `json:"item_id" binding:"required"`
	QtyPriced   float64 `json:"qty_priced" binding:"required"`
	MarketPrice float64 `json:"market_price" binding:"required"`
	PricingDate string  `json:"pricing_date" binding:"required"`
	Reference   string  `json:"reference"`
	Version     int64   `json:"version" binding:"required"`
}

func (h *Handler) partialPrice(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var req partialPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	itemID, err := uuid.Parse(strings.TrimSpace(req.ItemID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item_id"})
		return
	}
	date, err := parseDate(req.PricingDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pricing_date"})
		return
	}

	result, err := h.contracts.AddPartialPricing(c.Request.Context(), service.PartialPriceInput{
		ContractID:  contractID,
		ItemID:      itemID,
		QtyPriced:   req.QtyPriced,
		MarketPrice: req.MarketPrice,
		PricingDate: date,
		Reference:   req.Reference,
		Version:     req.Version,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fixation_id": result.Fixation.ID,
		"version":     result.Version,
	})
}

func (h *Handler) approvePricing(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}
	version, err := strconv.ParseInt(c.Query("version"), 10, 64)
	if err != nil || version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version"})
		return
	}

	newVersion, err := h.contracts.ApprovePricing(c.Request.Context(), contractID, version, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": newVersion})
}

func (h *Handler) statement(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	_, statement, err := h.contracts.Statement(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	rows := make([]gin.H, 0, len(statement.Rows))
	for _, row := range statement.Rows {
		rows = append(rows, gin.H{
			"id":               row.ID,
			"type":             row.Type,
			"transaction_date": row.TransactionDate,
			"reference":        row.Reference,
			"synthetic":        row.Synthetic,
			"debit":            row.Debit,
			"credit":           row.Credit,
			"balance":          row.Balance,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"direction":    statement.Direction,
		"rows":         rows,
		"total_debit":  statement.TotalDebit,
		"total_credit": statement.TotalCredit,
		"net_balance":  statement.NetBalance,
	})
}

func (h *Handler) exportStatementExcel(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	result, err := h.contracts.ExportStatementExcel(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) exportStatementPDF(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	result, err := h.contracts.ExportStatementPDF(c.Request.Context(), contractID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var verr *pricing.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Items))
		for _, id := range verr.Items {
			fields[id.String()] = verr.Msg
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Msg, "fields": fields})
	case errors.Is(err, service.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "version conflict, reload the contract"})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotEditable), errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func contractResponse(contract *model.Contract) gin.H {
	items := make([]gin.H, 0, len(contract.Items))
	for _, item := range contract.Items {
		items = append(items, gin.H{
			"id":           item.ID,
			"article_id":   item.ArticleID,
			"qty_ton":      item.QtyTon,
			"price":        item.Price,
			"premium":      item.Premium,
			"pricing_mode": item.PricingMode,
			"total":        item.Total(),
		})
	}
	return gin.H{
		"id":              contract.ID,
		"contract_number": contract.Number,
		"version":         contract.Version,
		"status":          contract.Status,
		"direction":       contract.Direction,
		"seller_id":       contract.SellerID,
		"buyer_id":        contract.BuyerID,
		"incoterm":        contract.Incoterm,
		"currency":        contract.Currency,
		"items":           items,
		"created_at":      contract.CreatedAt,
		"modified_date":   contract.ModifiedDate,
	}
}

func parseDirection(raw string) (model.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "export":
		return model.DirectionExport, nil
	case "import":
		return model.DirectionImport, nil
	default:
		return "", service.ErrInvalidInput
	}
}

func parseItems(payloads []contractItemPayload) ([]model.ContractItem, error) {
	items := make([]model.ContractItem, 0, len(payloads))
	for _, p := range payloads {
		articleID, err := uuid.Parse(strings.TrimSpace(p.ArticleID))
		if err != nil {
			return nil, errors.New("invalid article_id")
		}
		item := model.ContractItem{
			ArticleID:   articleID,
			QtyTon:      p.QtyTon,
			Price:       p.Price,
			Premium:     p.Premium,
			PricingMode: model.PricingModeFixed,
		}
		if p.ID != "" {
			id, err := uuid.Parse(p.ID)
			if err != nil {
				return nil, errors.New("invalid item id")
			}
			item.ID = id
		}
		if strings.EqualFold(p.PricingMode, string(model.PricingModeMarket)) {
			item.PricingMode = model.PricingModeMarket
		}
		items = append(items, item)
	}
	return items, nil
}

func parseOptionalUUID(raw *string) *uuid.UUID {
	if raw == nil {
		return nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil
	}
	return &id
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
