// Package symbol 负责把用户输入的证券代码规范为存储代码与上游查询代码。
package symbol

import "strings"

// Code 规范化结果
type Code struct {
	Storage  string // 库内代码，如 sh600000
	Provider string // 上游股票接口使用的代码，如 600000
	IsIndex  bool
}

// 已知指数代码。新增指数需在此显式登记，不根据格式推断。
var knownIndices = map[string]struct{}{
	"000001": {}, "sh000001": {}, // 上证指数
	"399001": {}, "sz399001": {}, // 深证成指
	"399006": {}, "sz399006": {}, // 创业板指
	"sh000300": {}, // 沪深300
	"sh000016": {}, // 上证50
	"sh000905": {}, // 中证500
}

// Index 预置指数信息，股票列表同步时一并写入
type Index struct {
	Code   string
	Name   string
	Market string
}

// DefaultIndices 同步股票列表时写入的常用指数
var DefaultIndices = []Index{
	{Code: "sh000001", Name: "上证指数", Market: "上交所"},
	{Code: "sz399001", Name: "深证成指", Market: "深交所"},
	{Code: "sz399006", Name: "创业板指", Market: "深交所"},
	{Code: "sh000300", Name: "沪深300", Market: "上交所"},
	{Code: "sh000016", Name: "上证50", Market: "上交所"},
	{Code: "sh000905", Name: "中证500", Market: "上交所"},
}

// Normalize 规范化代码，任何输入都返回结果，非法代码留给上游报错
func Normalize(raw string) Code {
	code := strings.ToLower(strings.TrimSpace(raw))

	var c Code
	if strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") {
		c.Storage = code
		c.Provider = code[2:]
	} else {
		c.Provider = code
		switch {
		case strings.HasPrefix(code, "6"):
			c.Storage = "sh" + code
		case strings.HasPrefix(code, "0"), strings.HasPrefix(code, "3"):
			c.Storage = "sz" + code
		default:
			c.Storage = code
		}
	}

	_, c.IsIndex = knownIndices[code]
	return c
}

// Market 根据规范代码前缀给出市场名称
func Market(storage string) string {
	switch {
	case strings.HasPrefix(storage, "sh"):
		return "上交所"
	case strings.HasPrefix(storage, "sz"):
		return "深交所"
	case strings.HasPrefix(storage, "bj"):
		return "北交所"
	default:
		return "其他"
	}
}
