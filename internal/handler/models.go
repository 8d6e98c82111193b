package handler

import (
	"time"

	"github.com/blues/mes/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// 托管相关请求模型

// CreateEscrowRequest 创建托管请求
type CreateEscrowRequest struct {
	OrderId          string `json:"order_id" binding:"required"`
	PaymentReference string `json:"payment_reference"`
	BuyerId          string `json:"buyer_id" binding:"required"`
	SellerId         string `json:"seller_id" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
}

// MarkShippedRequest 发货请求
type MarkShippedRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

// ConfirmReceiptRequest 确认收货请求，评分可选
type ConfirmReceiptRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// InitiateDisputeRequest 发起争议请求
type InitiateDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
	Evidence    string `json:"evidence" binding:"required"`
}

// ResolveDisputeRequest 裁决争议请求
type ResolveDisputeRequest struct {
	AwardToBuyerPercentage *int   `json:"award_to_buyer_percentage" binding:"required"`
	Resolution             string `json:"resolution"`
}

// 托管相关响应模型

// EscrowResponse 托管响应模型
type EscrowResponse struct {
	Id                   string     `json:"id"`
	OrderId              string     `json:"orderId"`
	PaymentReference     string     `json:"paymentReference"`
	BuyerId              string     `json:"buyerId"`
	SellerId             string     `json:"sellerId"`
	Amount               string     `json:"amount"`
	Fee                  string     `json:"fee"`
	Status               string     `json:"status"`
	ReleaseDate          time.Time  `json:"releaseDate"`
	TrackingNumber       string     `json:"trackingNumber,omitempty"`
	Carrier              string     `json:"carrier,omitempty"`
	ReleasedAt           *time.Time `json:"releasedAt,omitempty"`
	ReleaseReason        string     `json:"releaseReason,omitempty"`
	ReleasedBy           string     `json:"releasedBy,omitempty"`
	AutoReleaseProcessed bool       `json:"autoReleaseProcessed"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// ToEscrowResponse 模型转响应
func ToEscrowResponse(escrow *model.EscrowModel) EscrowResponse {
	return EscrowResponse{
		Id:                   escrow.Id,
		OrderId:              escrow.OrderId,
		PaymentReference:     escrow.PaymentReference,
		BuyerId:              escrow.BuyerId,
		SellerId:             escrow.SellerId,
		Amount:               escrow.Amount.StringFixed(2),
		Fee:                  escrow.Fee.StringFixed(2),
		Status:               string(escrow.Status),
		ReleaseDate:          escrow.ReleaseDate,
		TrackingNumber:       escrow.TrackingNumber,
		Carrier:              escrow.Carrier,
		ReleasedAt:           escrow.ReleasedAt,
		ReleaseReason:        escrow.ReleaseReason,
		ReleasedBy:           escrow.ReleasedBy,
		AutoReleaseProcessed: escrow.AutoReleaseProcessed,
		CreatedAt:            escrow.CreatedAt,
		UpdatedAt:            escrow.UpdatedAt,
	}
}

// ToEscrowResponseList 模型列表转响应列表
func ToEscrowResponseList(escrows []model.EscrowModel) []EscrowResponse {
	responses := make([]EscrowResponse, 0, len(escrows))
	for i := range escrows {
		responses = append(responses, ToEscrowResponse(&escrows[i]))
	}
	return responses
}

// DisputeResponse 争议响应模型
type DisputeResponse struct {
	Id                     string     `json:"id"`
	EscrowId               string     `json:"escrowId"`
	InitiatedBy            string     `json:"initiatedBy"`
	Reason                 string     `json:"reason"`
	Description            string     `json:"description,omitempty"`
	Evidence               string     `json:"evidence,omitempty"`
	Status                 string     `json:"status"`
	ResolvedBy             string     `json:"resolvedBy,omitempty"`
	Resolution             string     `json:"resolution,omitempty"`
	AwardToBuyerPercentage int        `json:"awardToBuyerPercentage"`
	ResolvedAt             *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// ToDisputeResponse 模型转响应
func ToDisputeResponse(dispute *model.DisputeModel) DisputeResponse {
	return DisputeResponse{
		Id:                     dispute.Id,
		EscrowId:               dispute.EscrowId,
		InitiatedBy:            dispute.InitiatedBy,
		Reason:                 dispute.Reason,
		Description:            dispute.Description,
		Evidence:               dispute.Evidence,
		Status:                 string(dispute.Status),
		ResolvedBy:             dispute.ResolvedBy,
		Resolution:             dispute.Resolution,
		AwardToBuyerPercentage: dispute.AwardToBuyerPercentage,
		ResolvedAt:             dispute.ResolvedAt,
		CreatedAt:              dispute.CreatedAt,
	}
}

// EscrowEventResponse 审计事件响应模型
type EscrowEventResponse struct {
	Id        string    `json:"id"`
	EscrowId  string    `json:"escrowId"`
	EventType string    `json:"eventType"`
	Actor     string    `json:"actor,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToEscrowEventResponseList 事件列表转响应
func ToEscrowEventResponseList(events []model.EscrowEventModel) []EscrowEventResponse {
	responses := make([]EscrowEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, EscrowEventResponse{
			Id:        event.Id,
			EscrowId:  event.EscrowId,
			EventType: event.EventType,
			Actor:     event.Actor,
			Metadata:  event.Metadata,
			CreatedAt: event.CreatedAt,
		})
	}
	return responses
}

// GetEscrowsResponse 托管列表响应
type GetEscrowsResponse struct {
	Escrows    []EscrowResponse `json:"escrows"`
	Pagination Pagination       `json:"pagination"`
}

// ResolveDisputeResponse 裁决结果响应
type ResolveDisputeResponse struct {
	Escrow  EscrowResponse  `json:"escrow"`
	Dispute DisputeResponse `json:"dispute"`
}
