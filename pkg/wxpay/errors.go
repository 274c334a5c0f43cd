package wxpay

import (
	"errors"
	"fmt"
)

// TransportError 通信层失败：超时、连接错误、HTTP 非 2xx 或 return_code != SUCCESS。
// 可以重试，远端订单是否已创建未知，只能通过查询确认。
type TransportError struct {
	Op  string
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wxpay %s: transport: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("wxpay %s: transport: %s", e.Op, e.Msg)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError 网关业务失败 result_code != SUCCESS，错误码与描述原样透出
type BusinessError struct {
	Op   string
	Code string
	Desc string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("wxpay %s: %s: %s", e.Op, e.Code, e.Desc)
}

// SignatureError 响应或回调签名校验失败，报文不可信
type SignatureError struct {
	Op string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("wxpay %s: signature verification failed", e.Op)
}

// FormatError XML 或时间格式错误
type FormatError struct {
	Field string
	Value string
	Msg   string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return "wxpay: format: " + e.Msg
	}
	return fmt.Sprintf("wxpay: format: %s %q: %s", e.Field, e.Value, e.Msg)
}

// IsRetryable 调用方可以安全重试的错误
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBusinessCode 判断是否为指定错误码的业务错误
func IsBusinessCode(err error, code string) bool {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
