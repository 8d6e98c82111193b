package handler

import (
	"net/http"

	"github.com/blues/mes/internal/logic"
	"github.com/gin-gonic/gin"
)

// DisputeHandler 争议处理器
type DisputeHandler struct {
	disputeLogic *logic.DisputeLogic
}

// NewDisputeHandler 创建争议处理器
func NewDisputeHandler(disputeLogic *logic.DisputeLogic) *DisputeHandler {
	return &DisputeHandler{
		disputeLogic: disputeLogic,
	}
}

// adminId 从请求头解析管理员身份
func adminId(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Admin-Id")
	if id == "" {
		ErrorResponse(c, http.StatusUnauthorized, "缺少管理员身份")
		return "", false
	}
	return id, true
}

// GetDispute 获取争议详情
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	dispute, err := h.disputeLogic.GetDispute(c.Param("id"))
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取争议详情成功", ToDisputeResponse(dispute))
}

// ResolveDispute 管理员裁决争议
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	admin, ok := adminId(c)
	if !ok {
		return
	}

	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	escrow, dispute, err := h.disputeLogic.ResolveDispute(c.Param("id"), admin, *req.AwardToBuyerPercentage, req.Resolution)
	if err != nil {
		BusinessErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "争议裁决成功", ResolveDisputeResponse{
		Escrow:  ToEscrowResponse(escrow),
		Dispute: ToDisputeResponse(dispute),
	})
}
