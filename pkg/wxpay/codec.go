package wxpay

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"sort"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const timeLayout = "20060102150405"

var hundred = decimal.NewFromInt(100)

// EncodeXML 平铺参数编码为 <xml><k>v</k>...</xml>，不带属性、不缩进。
// 键不做转义，调用方需先用 CheckKeys 校验，非法键生成的报文 DecodeXML 无法解析。
func EncodeXML(params map[string]string) []byte {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("<xml>")
	for _, k := range keys {
		buf.WriteByte('<')
		buf.WriteString(k)
		buf.WriteByte('>')
		// EscapeText 写入 bytes.Buffer 不会失败
		_ = xml.EscapeText(&buf, []byte(params[k]))
		buf.WriteString("</")
		buf.WriteString(k)
		buf.WriteByte('>')
	}
	buf.WriteString("</xml>")
	return buf.Bytes()
}

// CheckKeys 所有键都必须是合法的 XML 元素名
func CheckKeys(params map[string]string) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !validName(k) {
			return &FormatError{Field: "key", Value: k, Msg: "not a valid xml element name"}
		}
	}
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return true
}

// DecodeXML 解析平铺 XML，根节点下每个叶子节点一个键，未知字段保留
func DecodeXML(data []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{Msg: "empty xml document"}
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	params := make(map[string]string)
	depth := 0
	var (
		key  string
		text []byte
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Msg: err.Error()}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
			case 2:
				key = t.Name.Local
				text = text[:0]
			default:
				return nil, &FormatError{Field: key, Msg: "nested element not supported"}
			}
		case xml.CharData:
			if depth == 2 {
				text = append(text, t...)
			}
		case xml.EndElement:
			if depth == 2 {
				params[key] = string(text)
			}
			depth--
			if depth == 0 {
				return params, nil
			}
		}
	}
	return nil, &FormatError{Msg: "missing root element"}
}

// ToFen 元转分，四舍五入（远离零）
func ToFen(yuan decimal.Decimal) int64 {
	return yuan.Mul(hundred).Round(0).IntPart()
}

// ToYuan 分转元，固定两位小数
func ToYuan(fen int64) decimal.Decimal {
	return decimal.New(fen, -2)
}

// FormatTime 网关时间格式 yyyyMMddHHmmss，使用网关所在时区
func FormatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timeLayout)
}

// ParseTime FormatTime 的逆操作
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if len(s) != len(timeLayout) {
		return time.Time{}, &FormatError{Field: "time", Value: s, Msg: "want 14 digits"}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, &FormatError{Field: "time", Value: s, Msg: "want 14 digits"}
		}
	}
	t, err := time.ParseInLocation(timeLayout, s, loc)
	if err != nil {
		return time.Time{}, &FormatError{Field: "time", Value: s, Msg: err.Error()}
	}
	return t, nil
}
