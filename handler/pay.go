package handler

import (
	"Recharge/config"
	"Recharge/middleware"
	"Recharge/models"
	"Recharge/pkg/context"
	"Recharge/pkg/log"
	"Recharge/pkg/response"
	"Recharge/pkg/wxpay"
	"Recharge/service"
	"Recharge/types"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 回调报文上限
const maxNotifyBody = 64 << 10

type Pay struct {
	Config   *config.Config
	Payment  service.IPaymentService
	Notify   service.INotifyService
	Packages service.IPackageService
}

func (p *Pay) RegisterRouter(r gin.IRouter) {
	authorize := middleware.Auth([]byte(p.Config.Jwt.Secret))
	pay := r.Group("/v1/pay")
	{
		pay.GET("/packages", context.Wrap(p.ListPackages))
		pay.POST("/orders", authorize, context.Wrap(p.CreateOrder))
		pay.GET("/orders", authorize, context.Wrap(p.ListOrders))
		pay.GET("/orders/:order_no", authorize, context.Wrap(p.QueryOrder))
		pay.POST("/orders/:order_no/close", authorize, context.Wrap(p.CloseOrder))
		pay.POST("/notify/wechat", context.Wrap(p.WechatNotify)) // 支付回调，无登录态
	}
}

func (p *Pay) ListPackages(c *gin.Context) error {
	items, err := p.Packages.ListPackages(c.Request.Context())
	if err != nil {
		return err
	}
	response.Success(c, items)
	return nil
}

// CreateOrder 下单并返回二维码链接
func (p *Pay) CreateOrder(c *gin.Context) error {
	var req types.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(400, "参数错误: "+err.Error())
	}
	userID, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(401, err.Error())
	}

	res, err := p.Payment.CreateOrder(c.Request.Context(), userID, req.PackageID, c.ClientIP())
	if err != nil {
		return payError(err)
	}
	response.Success(c, types.CreateOrderResponse{
		OrderNo:    res.Order.OrderNo,
		CodeURL:    res.CodeURL,
		Amount:     res.Order.Amount.StringFixed(2),
		ExpireTime: res.Order.ExpireTime.Format("2006-01-02 15:04:05"),
	})
	return nil
}

func (p *Pay) ListOrders(c *gin.Context) error {
	var req types.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(400, "参数错误: "+err.Error())
	}
	userID, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(401, err.Error())
	}
	resp, err := p.Payment.ListOrders(c.Request.Context(), userID, req.Status, req.Cursor, req.Limit)
	if err != nil {
		return err
	}
	response.Success(c, resp)
	return nil
}

// QueryOrder 前端轮询支付结果
func (p *Pay) QueryOrder(c *gin.Context) error {
	order, err := p.ownOrder(c)
	if err != nil {
		return err
	}
	res, err := p.Payment.QueryStatus(c.Request.Context(), order.OrderNo)
	if err != nil {
		return payError(err)
	}
	response.Success(c, statusResponse(res))
	return nil
}

func (p *Pay) CloseOrder(c *gin.Context) error {
	order, err := p.ownOrder(c)
	if err != nil {
		return err
	}
	res, err := p.Payment.CloseOrder(c.Request.Context(), order.OrderNo)
	if err != nil {
		return payError(err)
	}
	response.Success(c, statusResponse(res))
	return nil
}

// WechatNotify 回调应答为 XML；验签失败 400，内部错误 500 让网关重推
func (p *Pay) WechatNotify(c *gin.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxNotifyBody+1))
	if err != nil {
		return err
	}
	if len(body) > maxNotifyBody {
		log.L.Warn("notify body too large", zap.String("client_ip", c.ClientIP()))
		c.Data(http.StatusRequestEntityTooLarge, "text/xml; charset=utf-8", wxpay.NotifyAck(false, "body too large"))
		return nil
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[k] = c.GetHeader(k)
	}
	out, ack := p.Notify.Handle(c.Request.Context(), &service.NotifyRequest{
		Body:     body,
		Headers:  headers,
		ClientIP: c.ClientIP(),
	})

	status := http.StatusOK
	switch out.Outcome {
	case service.NotifyRejected:
		status = http.StatusBadRequest
	case service.NotifyRetry:
		status = http.StatusInternalServerError
	}
	c.Data(status, "text/xml; charset=utf-8", ack)
	return nil
}

// ownOrder 订单不属于当前用户时按不存在处理
func (p *Pay) ownOrder(c *gin.Context) (*models.PaymentOrder, error) {
	orderNo := c.Param("order_no")
	if orderNo == "" {
		return nil, response.NewError(400, "订单号不能为空")
	}
	userID, err := context.GetUserID(c)
	if err != nil {
		return nil, response.NewError(401, err.Error())
	}
	order, err := p.Payment.GetOrder(c.Request.Context(), orderNo)
	if err != nil {
		return nil, payError(err)
	}
	if order.UserID != userID {
		return nil, response.NewError(404, "订单不存在")
	}
	return order, nil
}

func statusResponse(res *service.QueryResult) types.OrderStatusResponse {
	return types.OrderStatusResponse{
		PaymentOrder: service.ToOrderDTO(res.Order),
		TradeState:   res.TradeState,
		Warning:      res.Warning,
	}
}

// payError 业务错误转成响应码，其余交给 Wrap 记录后返回 500
func payError(err error) error {
	var be *wxpay.BusinessError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return response.NewError(404, "订单不存在")
	case errors.Is(err, service.ErrPackageNotFound):
		return response.NewError(404, "套餐不存在或已下架")
	case errors.Is(err, service.ErrInvalidAmount):
		return response.NewError(400, "套餐金额异常")
	case errors.Is(err, service.ErrInvalidPoints):
		return response.NewError(400, "套餐积分配置异常")
	case errors.Is(err, service.ErrOrderNotPending):
		return response.NewError(409, "订单状态不允许该操作")
	case errors.Is(err, service.ErrOrderConflict):
		return response.NewError(409, "订单状态冲突")
	case wxpay.IsRetryable(err):
		log.L.Warn("wxpay unavailable", zap.Error(err))
		return response.NewError(503, "支付服务暂不可用，请稍后重试")
	case errors.As(err, &be):
		return response.NewError(502, "支付下单失败: "+be.Desc)
	}
	return err
}
