package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/blues/mes/internal/config"
	"github.com/shopspring/decimal"
)

// httpClient 各协作方共用的 HTTP 调用封装
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) postJSON(path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("请求 %s 返回状态码 %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("解析 %s 响应失败: %w", path, err)
		}
	}
	return nil
}

func (c *httpClient) getJSON(path string, out interface{}) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("请求 %s 返回状态码 %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, err)
	}
	return nil
}

// HTTPPaymentProcessor 支付处理方 HTTP 客户端
type HTTPPaymentProcessor struct {
	http *httpClient
}

// NewHTTPPaymentProcessor 创建支付处理方客户端
func NewHTTPPaymentProcessor(cfg config.GatewayConfig) *HTTPPaymentProcessor {
	return &HTTPPaymentProcessor{
		http: newHTTPClient(cfg.PaymentURL, time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

func (p *HTTPPaymentProcessor) AmountCaptured(orderId string) (string, error) {
	var out struct {
		Captured  bool   `json:"captured"`
		Reference string `json:"reference"`
	}
	if err := p.http.getJSON("/api/v1/captures/"+url.PathEscape(orderId), &out); err != nil {
		return "", err
	}
	if !out.Captured {
		return "", fmt.Errorf("订单 %s 尚未完成资金扣款", orderId)
	}
	return out.Reference, nil
}

func (p *HTTPPaymentProcessor) Refund(reference string, amount decimal.Decimal) error {
	return p.http.postJSON("/api/v1/refunds", map[string]interface{}{
		"reference": reference,
		"amount":    amount.StringFixed(2),
	}, nil)
}

func (p *HTTPPaymentProcessor) Payout(sellerId string, amount decimal.Decimal) error {
	return p.http.postJSON("/api/v1/payouts", map[string]interface{}{
		"seller_id": sellerId,
		"amount":    amount.StringFixed(2),
	}, nil)
}

// HTTPOrderStore 订单服务 HTTP 客户端
type HTTPOrderStore struct {
	http *httpClient
}

// NewHTTPOrderStore 创建订单服务客户端
func NewHTTPOrderStore(cfg config.GatewayConfig) *HTTPOrderStore {
	return &HTTPOrderStore{
		http: newHTTPClient(cfg.OrderURL, time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

func (o *HTTPOrderStore) GetItemComposition(orderId string) (ItemComposition, error) {
	var out ItemComposition
	if err := o.http.getJSON("/api/v1/orders/"+url.PathEscape(orderId)+"/composition", &out); err != nil {
		return ItemComposition{}, err
	}
	return out, nil
}

func (o *HTTPOrderStore) GetOrderStatus(orderId string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := o.http.getJSON("/api/v1/orders/"+url.PathEscape(orderId)+"/status", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// HTTPPayoutEngine 分账引擎 HTTP 客户端
type HTTPPayoutEngine struct {
	http *httpClient
}

// NewHTTPPayoutEngine 创建分账引擎客户端
func NewHTTPPayoutEngine(cfg config.GatewayConfig) *HTTPPayoutEngine {
	return &HTTPPayoutEngine{
		http: newHTTPClient(cfg.PayoutURL, time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

func (e *HTTPPayoutEngine) MarkPayable(orderId string) error {
	return e.http.postJSON("/api/v1/payables/"+url.PathEscape(orderId)+"/mark-payable", nil, nil)
}

// HTTPReputationStore 评价服务 HTTP 客户端
type HTTPReputationStore struct {
	http *httpClient
}

// NewHTTPReputationStore 创建评价服务客户端
func NewHTTPReputationStore(cfg config.GatewayConfig) *HTTPReputationStore {
	return &HTTPReputationStore{
		http: newHTTPClient(cfg.ReputationURL, time.Duration(cfg.TimeoutSeconds)*time.Second),
	}
}

func (r *HTTPReputationStore) RecordRating(orderId, sellerId, buyerId string, rating int, feedback string) error {
	return r.http.postJSON("/api/v1/ratings", map[string]interface{}{
		"order_id":  orderId,
		"seller_id": sellerId,
		"buyer_id":  buyerId,
		"rating":    rating,
		"feedback":  feedback,
	}, nil)
}
