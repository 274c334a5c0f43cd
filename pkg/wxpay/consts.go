package wxpay

const (
	DefaultBaseURL = "https://api.mch.weixin.qq.com"

	PathUnifiedOrder = "/pay/unifiedorder"
	PathOrderQuery   = "/pay/orderquery"
	PathCloseOrder   = "/pay/closeorder"
)

type SignType string

const (
	SignTypeMD5        SignType = "MD5"
	SignTypeHMACSHA256 SignType = "HMAC-SHA256"
)

const (
	CodeSuccess = "SUCCESS"
	CodeFail    = "FAIL"
)

const TradeTypeNative = "NATIVE"

// 交易状态 trade_state
const (
	TradeStateSuccess    = "SUCCESS"    // 支付成功
	TradeStateRefund     = "REFUND"     // 转入退款
	TradeStateNotPay     = "NOTPAY"     // 未支付
	TradeStateClosed     = "CLOSED"     // 已关闭
	TradeStateRevoked    = "REVOKED"    // 已撤销（刷卡支付）
	TradeStateUserPaying = "USERPAYING" // 用户支付中
	TradeStatePayError   = "PAYERROR"   // 支付失败
)

// 业务错误码 err_code
const (
	ErrCodeNoAuth             = "NOAUTH"
	ErrCodeNotEnough          = "NOTENOUGH"
	ErrCodeOrderPaid          = "ORDERPAID"
	ErrCodeOrderClosed        = "ORDERCLOSED"
	ErrCodeSystemError        = "SYSTEMERROR"
	ErrCodeAppIDNotExist      = "APPID_NOT_EXIST"
	ErrCodeMchIDNotExist      = "MCHID_NOT_EXIST"
	ErrCodeAppIDMchIDNotMatch = "APPID_MCHID_NOT_MATCH"
	ErrCodeLackParams         = "LACK_PARAMS"
	ErrCodeOutTradeNoUsed     = "OUT_TRADE_NO_USED"
	ErrCodeSignError          = "SIGNERROR"
	ErrCodeXMLFormatError     = "XML_FORMAT_ERROR"
	ErrCodeRequirePostMethod  = "REQUIRE_POST_METHOD"
	ErrCodePostDataEmpty      = "POST_DATA_EMPTY"
	ErrCodeNotUTF8            = "NOT_UTF8"
	ErrCodeOrderNotExist      = "ORDERNOTEXIST"
)

var errCodeMessages = map[string]string{
	ErrCodeNoAuth:             "商户无此接口权限",
	ErrCodeNotEnough:          "余额不足",
	ErrCodeOrderPaid:          "商户订单已支付",
	ErrCodeOrderClosed:        "订单已关闭",
	ErrCodeSystemError:        "系统错误",
	ErrCodeAppIDNotExist:      "APPID不存在",
	ErrCodeMchIDNotExist:      "MCHID不存在",
	ErrCodeAppIDMchIDNotMatch: "appid和mch_id不匹配",
	ErrCodeLackParams:         "缺少参数",
	ErrCodeOutTradeNoUsed:     "商户订单号重复",
	ErrCodeSignError:          "签名错误",
	ErrCodeXMLFormatError:     "XML格式错误",
	ErrCodeRequirePostMethod:  "请求方式错误",
	ErrCodePostDataEmpty:      "post数据为空",
	ErrCodeNotUTF8:            "编码格式错误",
	ErrCodeOrderNotExist:      "此交易订单号不存在",
}

// ErrCodeMessage 错误码对应的中文描述，网关未返回 err_code_des 时使用
func ErrCodeMessage(code string) string {
	if msg, ok := errCodeMessages[code]; ok {
		return msg
	}
	return "未知错误: " + code
}
