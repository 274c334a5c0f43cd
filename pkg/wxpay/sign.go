package wxpay

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"math/rand/v2"
	"sort"
	"strings"
)

const nonceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Canonical 生成待签名串：去掉 sign 和空值，按 key 字节序排序，拼成 k=v&k=v
func Canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// Sign MD5 签名
func Sign(params map[string]string, key string) string {
	return SignWith(SignTypeMD5, params, key)
}

// SignWith stringSignTemp = Canonical(params) + "&key=" + key，摘要转大写 hex
func SignWith(signType SignType, params map[string]string, key string) string {
	var h hash.Hash
	if signType == SignTypeHMACSHA256 {
		h = hmac.New(sha256.New, []byte(key))
	} else {
		h = md5.New()
	}
	h.Write([]byte(Canonical(params) + "&key=" + key))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

// Verify 校验 MD5 签名
func Verify(params map[string]string, key string) bool {
	return VerifyWith(SignTypeMD5, params, key)
}

// VerifyWith 取出 sign 后对其余参数重新签名，大小写不敏感比较
func VerifyWith(signType SignType, params map[string]string, key string) bool {
	got := params["sign"]
	if got == "" {
		return false
	}
	return strings.EqualFold(got, SignWith(signType, params, key))
}

// NonceStr 随机字符串，只要求单次请求唯一
func NonceStr(length int) string {
	if length <= 0 {
		length = 32
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = nonceChars[rand.IntN(len(nonceChars))]
	}
	return string(b)
}
