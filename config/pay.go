package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

const (
	defaultGatewayURL     = "https://api.mch.weixin.qq.com"
	defaultGatewayTimeout = 10 * time.Second
	defaultGatewayZone    = "Asia/Shanghai"
)

// WechatPayConfig 微信支付 V2 商户配置
type WechatPayConfig struct {
	AppID          string `yaml:"app_id"`           // 应用ID
	MchID          string `yaml:"mch_id"`           // 商户号
	APIKey         string `yaml:"api_key"`          // API 密钥
	NotifyURL      string `yaml:"notify_url"`       // 支付回调URL
	SignType       string `yaml:"sign_type"`        // MD5 / HMAC-SHA256
	SpbillCreateIP string `yaml:"spbill_create_ip"` // 终端IP
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	TimeZone       string `yaml:"time_zone"`
}

// Validate 凭证必须显式配置，不提供任何兜底值
func (w *WechatPayConfig) Validate() error {
	if w == nil {
		return errors.New("config: wechat_pay section is required")
	}
	missing := func(field string) error {
		return fmt.Errorf("config: wechat_pay.%s is required", field)
	}
	switch {
	case w.AppID == "":
		return missing("app_id")
	case w.MchID == "":
		return missing("mch_id")
	case w.APIKey == "":
		return missing("api_key")
	case w.NotifyURL == "":
		return missing("notify_url")
	}
	switch w.GetSignType() {
	case "MD5", "HMAC-SHA256":
	default:
		return fmt.Errorf("config: wechat_pay.sign_type %q not supported", w.SignType)
	}
	if _, err := w.Location(); err != nil {
		return fmt.Errorf("config: wechat_pay.time_zone: %w", err)
	}
	return nil
}

func (w *WechatPayConfig) GetSignType() string {
	if w.SignType == "" {
		return "MD5"
	}
	return w.SignType
}

func (w *WechatPayConfig) Endpoint() string {
	if w.BaseURL == "" {
		return defaultGatewayURL
	}
	return w.BaseURL
}

func (w *WechatPayConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return defaultGatewayTimeout
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// Location 网关时间戳所在时区，默认北京时间
func (w *WechatPayConfig) Location() (*time.Location, error) {
	zone := w.TimeZone
	if zone == "" {
		zone = defaultGatewayZone
	}
	return time.LoadLocation(zone)
}

func ProvideWechatPayConfig(cfg *Config) *WechatPayConfig {
	return cfg.WechatPay
}
