package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/blues/mes/internal/ledger"
	"github.com/blues/mes/internal/logic"
	"github.com/blues/mes/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// EscrowHandler 托管处理器
type EscrowHandler struct {
	escrowLogic *logic.EscrowLogic
}

// NewEscrowHandler 创建托管处理器
func NewEscrowHandler(escrowLogic *logic.EscrowLogic) *EscrowHandler {
	return &EscrowHandler{
		escrowLogic: escrowLogic,
	}
}

// callerId 从请求头解析调用方身份，不读取任何隐式会话状态
func callerId(c *gin.Context) (string, bool) {
	userId := c.GetHeader("X-User-Id")
	if userId == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少调用方身份")
		return "", false
	}
	return userId, true
}

// CreateEscrow 创建托管（扣款确认后由下单流程调用）
func (h *EscrowHandler) CreateEscrow(c *gin.Context) {
	var req CreateEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的托管金额")
		return
	}

	// 调用logic层创建托管
	escrow, err := h.escrowLogic.CreateEscrow(req.OrderId, req.PaymentReference, req.BuyerId, req.SellerId, amount)
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "托管创建成功", ToEscrowResponse(escrow))
}

// GetEscrow 获取托管详情
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	escrow, err := h.escrowLogic.GetEscrow(c.Param("id"))
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取托管详情成功", ToEscrowResponse(escrow))
}

// ListEscrows 按买家/卖家/状态查询托管列表
func (h *EscrowHandler) ListEscrows(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	filter := ledger.ListFilter{
		BuyerId:  c.Query("buyer_id"),
		SellerId: c.Query("seller_id"),
		Status:   model.EscrowStatus(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}
	if filter.BuyerId == "" && filter.SellerId == "" {
		ErrorResponse(c, http.StatusBadRequest, "必须指定buyer_id或seller_id")
		return
	}

	escrows, total, err := h.escrowLogic.ListEscrows(filter)
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	pagination := Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}

	SuccessResponse(c, http.StatusOK, "获取托管列表成功", GetEscrowsResponse{
		Escrows:    ToEscrowResponseList(escrows),
		Pagination: pagination,
	})
}

// GetEscrowEvents 获取托管审计事件
func (h *EscrowHandler) GetEscrowEvents(c *gin.Context) {
	events, err := h.escrowLogic.GetEvents(c.Param("id"))
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取托管事件成功", ToEscrowEventResponseList(events))
}

// MarkShipped 卖家发货
func (h *EscrowHandler) MarkShipped(c *gin.Context) {
	sellerId, ok := callerId(c)
	if !ok {
		return
	}

	var req MarkShippedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	escrow, err := h.escrowLogic.MarkShipped(c.Param("id"), sellerId, req.TrackingNumber, req.Carrier)
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "发货成功", ToEscrowResponse(escrow))
}

// ConfirmReceipt 买家确认收货。放款与评分是同一调用的两个独立效果：
// 评分无效不会回滚已提交的放款，响应中如实说明。
func (h *EscrowHandler) ConfirmReceipt(c *gin.Context) {
	buyerId, ok := callerId(c)
	if !ok {
		return
	}

	var req ConfirmReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	escrow, err := h.escrowLogic.ConfirmReceipt(c.Param("id"), buyerId, req.Rating, req.Feedback)
	if err != nil {
		if escrow != nil && errors.Is(err, logic.ErrValidation) {
			SuccessResponse(c, http.StatusOK, "收货确认成功，评分无效未记录", ToEscrowResponse(escrow))
			return
		}
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "收货确认成功", ToEscrowResponse(escrow))
}

// InitiateDispute 买家发起争议
func (h *EscrowHandler) InitiateDispute(c *gin.Context) {
	buyerId, ok := callerId(c)
	if !ok {
		return
	}

	var req InitiateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	escrow, dispute, err := h.escrowLogic.InitiateDispute(c.Param("id"), buyerId, req.Reason, req.Description, req.Evidence)
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "争议创建成功", gin.H{
		"escrow":  ToEscrowResponse(escrow),
		"dispute": ToDisputeResponse(dispute),
	})
}

// GetStatistics 获取托管统计信息
func (h *EscrowHandler) GetStatistics(c *gin.Context) {
	stats, err := h.escrowLogic.GetStatistics(c.DefaultQuery("period", "all"))
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取统计信息成功", stats)
}

// RunAutoReleaseSweep 手动触发一轮自动放款扫描（调度器/运维入口）
func (h *EscrowHandler) RunAutoReleaseSweep(c *gin.Context) {
	batch, _ := strconv.Atoi(c.DefaultQuery("batch", "100"))
	result := h.escrowLogic.RunAutoReleaseSweep(batch)

	SuccessResponse(c, http.StatusOK, "自动放款扫描完成", result)
}
