package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paper-trader/internal/journal"
	"paper-trader/internal/ledger"
	"paper-trader/internal/order"
)

type handler struct {
	deps   Deps
	logger *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// submitOrder 受理下单请求。portfolio_id 省略时使用默认账户。
func (h *handler) submitOrder(c *gin.Context) {
	var req order.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "请求体格式非法: " + err.Error()})
		return
	}

	if req.PortfolioID == "" {
		req.PortfolioID = h.deps.DefaultPortfolioID
	}

	o, err := h.deps.Orders.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, o)
}

func (h *handler) getOrder(c *gin.Context) {
	o, err := h.deps.Orders.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) cancelOrder(c *gin.Context) {
	if err := h.deps.Orders.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}

	o, err := h.deps.Orders.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type createPortfolioRequest struct {
	InitialCapital float64 `json:"initial_capital"`
}

func (h *handler) createPortfolio(c *gin.Context) {
	var req createPortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "请求体格式非法: " + err.Error()})
		return
	}

	if req.InitialCapital <= 0 {
		req.InitialCapital = h.deps.Trading.InitialCapital
	}

	p, err := h.deps.Ledger.CreatePortfolio(req.InitialCapital)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handler) listPortfolios(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Ledger.List())
}

func (h *handler) getPortfolio(c *gin.Context) {
	p, err := h.deps.Ledger.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) resetPortfolio(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Ledger.Reset(id); err != nil {
		h.writeError(c, err)
		return
	}

	p, err := h.deps.Ledger.Get(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) listOrders(c *gin.Context) {
	if _, err := h.deps.Ledger.Get(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.deps.Orders.ListByPortfolio(c.Param("id")))
}

func (h *handler) riskMetrics(c *gin.Context) {
	report, err := h.deps.Ledger.RiskMetrics(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handler) closePosition(c *gin.Context) {
	o, err := h.deps.Orders.ClosePosition(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type stopLossRequest struct {
	StopPrice float64 `json:"stop_price"`
}

func (h *handler) setStopLoss(c *gin.Context) {
	var req stopLossRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "请求体格式非法: " + err.Error()})
		return
	}

	o, err := h.deps.Orders.SetStopLoss(c.Request.Context(), c.Param("id"), c.Param("symbol"), req.StopPrice)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Orders.Stats())
}

func (h *handler) getSignal(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "symbol 不能为空"})
		return
	}

	sig := h.deps.Signals.Generate(c.Request.Context(), symbol)
	if h.deps.Journal != nil {
		h.deps.Journal.RecordSignal(c.Request.Context(), sig)
	}
	c.JSON(http.StatusOK, sig)
}

type batchSignalRequest struct {
	Symbols []string `json:"symbols"`
}

func (h *handler) batchSignals(c *gin.Context) {
	var req batchSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "请求体格式非法: " + err.Error()})
		return
	}

	result, err := h.deps.Signals.GenerateBatch(c.Request.Context(), req.Symbols)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) listEvents(c *gin.Context) {
	if h.deps.Journal == nil {
		c.JSON(http.StatusOK, []journal.Event{})
		return
	}

	limit := 200
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	eventType := journal.EventType(strings.ToLower(strings.TrimSpace(c.Query("type"))))

	events, err := h.deps.Journal.ListEvents(c.Request.Context(), eventType, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// writeError 将内部错误映射到 HTTP 状态码：
// 校验类错误返回400，未找到返回404，不可撤销返回409，其余按500处理。
func (h *handler) writeError(c *gin.Context, err error) {
	switch {
	case order.IsValidation(err),
		errors.Is(err, ledger.ErrInsufficientCash),
		errors.Is(err, ledger.ErrInsufficientShares):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, ledger.ErrPortfolioNotFound),
		errors.Is(err, ledger.ErrPositionNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, order.ErrNotCancellable):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.logger.Error("请求处理失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
