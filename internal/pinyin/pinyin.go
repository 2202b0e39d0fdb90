// Package pinyin 为证券名称生成拼音搜索键。
package pinyin

import (
	"strings"

	gopinyin "github.com/mozillazg/go-pinyin"
)

// Transliterator 名称转拼音能力，启动时确定具体实现
type Transliterator interface {
	// Keys 返回小写全拼与首字母，不可用时返回空串
	Keys(name string) (full, abbr string)
	Available() bool
}

// New 根据配置选择实现
func New(enabled bool) Transliterator {
	if !enabled {
		return Unavailable{}
	}
	return NewAvailable()
}

// AvailableTransliterator 基于 go-pinyin 的实现
type AvailableTransliterator struct {
	full gopinyin.Args
	abbr gopinyin.Args
}

// NewAvailable 创建可用的拼音转换器
func NewAvailable() *AvailableTransliterator {
	full := gopinyin.NewArgs()
	full.Style = gopinyin.Normal
	full.Fallback = keepRune

	abbr := gopinyin.NewArgs()
	abbr.Style = gopinyin.FirstLetter
	abbr.Fallback = keepRune

	return &AvailableTransliterator{full: full, abbr: abbr}
}

// Keys 生成全拼与首字母，非汉字字符原样保留
func (a *AvailableTransliterator) Keys(name string) (string, string) {
	if name == "" {
		return "", ""
	}
	full := strings.Join(gopinyin.LazyPinyin(name, a.full), "")
	abbr := strings.Join(gopinyin.LazyPinyin(name, a.abbr), "")
	return strings.ToLower(full), strings.ToLower(abbr)
}

func (a *AvailableTransliterator) Available() bool { return true }

// Unavailable 拼音能力关闭时的实现
type Unavailable struct{}

func (Unavailable) Keys(string) (string, string) { return "", "" }

func (Unavailable) Available() bool { return false }

func keepRune(r rune, _ gopinyin.Args) []string {
	if r == ' ' {
		return nil
	}
	return []string{string(r)}
}
