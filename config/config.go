package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置信息
type Config struct {
	App       *App             `json:"app" yaml:"app"`
	Server    *Server          `json:"server" yaml:"server"`
	Redis     *Redis           `json:"redis" yaml:"redis"`
	MySQL     *MySQL           `json:"mysql" yaml:"mysql"`
	Jwt       *Jwt             `json:"jwt" yaml:"jwt"`
	RocketMQ  *RocketMQConfig  `json:"rocketmq" yaml:"rocketmq"`
	WechatPay *WechatPayConfig `json:"wechat_pay" yaml:"wechat_pay"`
	Order     *OrderConfig     `json:"order" yaml:"order"`
}

type Server struct {
	Http int `json:"http" yaml:"http"`
}

// New 读取配置文件，解析或校验失败直接 panic
func New(filename string) *Config {
	conf, err := Load(filename)
	if err != nil {
		panic(err)
	}
	return conf
}

func Load(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

func Parse(content []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(content, &conf); err != nil {
		return nil, fmt.Errorf("解析 config.yaml 读取错误: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate 缺失的段落补默认值，支付凭证缺失直接报错
func (c *Config) Validate() error {
	if c.App == nil {
		c.App = &App{}
	}
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Server.Http == 0 {
		c.Server.Http = 8080
	}
	if c.MySQL == nil {
		c.MySQL = &MySQL{}
	}
	if c.Jwt == nil {
		c.Jwt = &Jwt{}
	}
	if c.Order == nil {
		c.Order = &OrderConfig{}
	}
	if c.WechatPay == nil {
		return errors.New("config: wechat_pay section is required")
	}
	if err := c.WechatPay.Validate(); err != nil {
		return err
	}
	return c.Order.Validate()
}

// Debug 调试模式
func (c *Config) Debug() bool {
	return c.App.Debug
}

func ProvideOrderConfig(cfg *Config) *OrderConfig {
	return cfg.Order
}
