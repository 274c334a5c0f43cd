package wxpay

import (
	"Recharge/config"
	"Recharge/pkg/log"
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var gatewayRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wxpay_gateway_request_duration_seconds",
		Help:    "WeChat Pay V2 gateway request duration in seconds",
		Buckets: []float64{0.1, 0.3, 0.5, 1, 2, 5, 10},
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(gatewayRequestDuration)
}

// Client 微信支付 V2 (XML + MD5/HMAC-SHA256) 客户端
type Client struct {
	appID          string
	mchID          string
	apiKey         string
	notifyURL      string
	spbillCreateIP string
	signType       SignType
	loc            *time.Location
	http           *resty.Client
}

// UnifiedOrderRequest 统一下单（Native 扫码）参数
type UnifiedOrderRequest struct {
	OutTradeNo     string
	TotalFee       int64 // 单位：分
	Body           string
	Attach         string
	ProductID      string
	SpbillCreateIP string
	TimeExpire     time.Time
}

type UnifiedOrderResult struct {
	PrepayID   string
	CodeURL    string
	OutTradeNo string
}

type OrderQueryResult struct {
	TradeState     string
	TradeStateDesc string
	OutTradeNo     string
	TransactionID  string
	TotalFee       int64
	CashFee        int64
	TimeEnd        time.Time
	Attach         string
}

// Notification 已验签的支付结果通知
type Notification struct {
	OutTradeNo    string
	TransactionID string
	TotalFee      int64
	CashFee       int64
	TimeEnd       time.Time
	Attach        string
	OpenID        string
	TradeType     string
	BankType      string
	Raw           map[string]string
}

func NewClient(conf *config.WechatPayConfig) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}

	hc := resty.New().
		SetBaseURL(conf.Endpoint()).
		SetTimeout(conf.Timeout()).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("Accept", "application/xml").
		SetHeader("User-Agent", "Recharge-WxPayV2")

	return &Client{
		appID:          conf.AppID,
		mchID:          conf.MchID,
		apiKey:         conf.APIKey,
		notifyURL:      conf.NotifyURL,
		spbillCreateIP: conf.SpbillCreateIP,
		signType:       SignType(conf.GetSignType()),
		loc:            loc,
		http:           hc,
	}, nil
}

// Location 网关时区
func (c *Client) Location() *time.Location {
	return c.loc
}

// CreateNativeOrder 统一下单，返回二维码链接 code_url
func (c *Client) CreateNativeOrder(ctx context.Context, req *UnifiedOrderRequest) (*UnifiedOrderResult, error) {
	ip := req.SpbillCreateIP
	if ip == "" {
		ip = c.spbillCreateIP
	}
	params := map[string]string{
		"body":             req.Body,
		"out_trade_no":     req.OutTradeNo,
		"total_fee":        strconv.FormatInt(req.TotalFee, 10),
		"spbill_create_ip": ip,
		"notify_url":       c.notifyURL,
		"trade_type":       TradeTypeNative,
		"product_id":       req.ProductID,
		"attach":           req.Attach,
	}
	if !req.TimeExpire.IsZero() {
		params["time_expire"] = FormatTime(req.TimeExpire, c.loc)
	}

	res, err := c.do(ctx, "unifiedorder", PathUnifiedOrder, params)
	if err != nil {
		return nil, err
	}
	return &UnifiedOrderResult{
		PrepayID:   res["prepay_id"],
		CodeURL:    res["code_url"],
		OutTradeNo: req.OutTradeNo,
	}, nil
}

// QueryOrder 按商户订单号查询
func (c *Client) QueryOrder(ctx context.Context, outTradeNo string) (*OrderQueryResult, error) {
	res, err := c.do(ctx, "orderquery", PathOrderQuery, map[string]string{
		"out_trade_no": outTradeNo,
	})
	if err != nil {
		return nil, err
	}

	out := &OrderQueryResult{
		TradeState:     res["trade_state"],
		TradeStateDesc: res["trade_state_desc"],
		OutTradeNo:     res["out_trade_no"],
		TransactionID:  res["transaction_id"],
		Attach:         res["attach"],
	}
	if out.OutTradeNo == "" {
		out.OutTradeNo = outTradeNo
	}
	if out.TotalFee, err = parseFen("total_fee", res["total_fee"]); err != nil {
		return nil, err
	}
	// 支付成功必须带金额，否则结算会按 0 分判为金额不符
	if out.TradeState == TradeStateSuccess && res["total_fee"] == "" {
		return nil, &FormatError{Field: "total_fee", Msg: "missing on SUCCESS trade"}
	}
	if out.CashFee, err = parseFen("cash_fee", res["cash_fee"]); err != nil {
		return nil, err
	}
	if v := res["time_end"]; v != "" {
		if out.TimeEnd, err = ParseTime(v, c.loc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CloseOrder 关闭订单；已支付时返回 BusinessError{Code: ORDERPAID}
func (c *Client) CloseOrder(ctx context.Context, outTradeNo string) error {
	_, err := c.do(ctx, "closeorder", PathCloseOrder, map[string]string{
		"out_trade_no": outTradeNo,
	})
	return err
}

// ParseNotify 解析并验签支付结果通知，验签先于任何字段读取
func (c *Client) ParseNotify(raw []byte) (*Notification, error) {
	params, err := DecodeXML(raw)
	if err != nil {
		return nil, err
	}
	if !VerifyWith(c.signType, params, c.apiKey) {
		return nil, &SignatureError{Op: "notify"}
	}
	if params["return_code"] != CodeSuccess {
		return nil, &TransportError{Op: "notify", Msg: params["return_msg"]}
	}
	if params["result_code"] != CodeSuccess {
		return nil, businessError("notify", params)
	}

	n := &Notification{
		OutTradeNo:    params["out_trade_no"],
		TransactionID: params["transaction_id"],
		Attach:        params["attach"],
		OpenID:        params["openid"],
		TradeType:     params["trade_type"],
		BankType:      params["bank_type"],
		Raw:           params,
	}
	if n.OutTradeNo == "" {
		return nil, &FormatError{Field: "out_trade_no", Msg: "missing"}
	}
	if params["total_fee"] == "" {
		return nil, &FormatError{Field: "total_fee", Msg: "missing"}
	}
	if n.TotalFee, err = parseFen("total_fee", params["total_fee"]); err != nil {
		return nil, err
	}
	if n.CashFee, err = parseFen("cash_fee", params["cash_fee"]); err != nil {
		return nil, err
	}
	if v := params["time_end"]; v != "" {
		if n.TimeEnd, err = ParseTime(v, c.loc); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// NotifyAck 回调应答报文
func NotifyAck(success bool, msg string) []byte {
	code := CodeFail
	if success {
		code = CodeSuccess
	}
	if msg == "" {
		if success {
			msg = "OK"
		} else {
			msg = "FAIL"
		}
	}
	return EncodeXML(map[string]string{
		"return_code": code,
		"return_msg":  msg,
	})
}

func (c *Client) do(ctx context.Context, op, path string, params map[string]string) (map[string]string, error) {
	params["appid"] = c.appID
	params["mch_id"] = c.mchID
	params["nonce_str"] = NonceStr(32)
	params["sign_type"] = string(c.signType)
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}
	if err := CheckKeys(params); err != nil {
		return nil, err
	}
	params["sign"] = SignWith(c.signType, params, c.apiKey)

	start := time.Now()
	res, err := c.post(ctx, op, path, EncodeXML(params))
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		log.L.Warn("wxpay request failed",
			zap.String("op", op),
			zap.String("out_trade_no", params["out_trade_no"]),
			zap.Error(err))
		return nil, err
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, op, path string, body []byte) (map[string]string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, &TransportError{Op: op, Msg: "request failed", Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Op: op, Msg: "http status " + strconv.Itoa(resp.StatusCode())}
	}

	res, err := DecodeXML(resp.Body())
	if err != nil {
		return nil, err
	}
	// 先看通信标识，再看业务结果，最后验签
	if res["return_code"] != CodeSuccess {
		return nil, &TransportError{Op: op, Msg: res["return_msg"]}
	}
	if res["result_code"] != CodeSuccess {
		return nil, businessError(op, res)
	}
	if !VerifyWith(c.signType, res, c.apiKey) {
		return nil, &SignatureError{Op: op}
	}
	return res, nil
}

func businessError(op string, res map[string]string) *BusinessError {
	desc := res["err_code_des"]
	if desc == "" {
		desc = ErrCodeMessage(res["err_code"])
	}
	return &BusinessError{Op: op, Code: res["err_code"], Desc: desc}
}

func parseFen(field, v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &FormatError{Field: field, Value: v, Msg: "not an integer"}
	}
	return n, nil
}
