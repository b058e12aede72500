// Package namekey 把平台提供的游戏标题转换为可比较的匹配键
package namekey

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	// 商标类装饰符号，NFKC 会把 ™ 展开成 "TM"，必须先去掉
	decorations = strings.NewReplacer("™", "", "®", "", "©", "", "℠", "")
	// 平台给特别版奖杯列表追加的后缀：Trophies / Trophy / Trofei 等
	trophySuffix = regexp.MustCompile(`(?i)\btro(f|ph)[a-z]*`)
	lower        = cases.Lower(language.Und)
)

// Clean 去掉装饰符号与奖杯后缀，保留大小写和标点，用于展示与目录搜索
func Clean(raw string) string {
	s := decorations.Replace(raw)
	s = norm.NFKC.String(s)
	s = truncateTrophy(s)
	return collapse(s)
}

// Normalize 生成匹配键：Clean 之后去标点、合并空白、转小写。
// 纯函数且幂等；返回空串表示不可匹配，调用方不得把它当作有效键
func Normalize(raw string) string {
	s := Clean(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, s)
	// 去标点可能拼出新的后缀（如 "Tro-phies"），再截一次
	s = truncateTrophy(s)
	s = collapse(s)
	return norm.NFKC.String(lower.String(s))
}

// HasAnyToken key 中是否出现任一整词（用于 demo/beta 等排除策略）
func HasAnyToken(key string, tokens []string) bool {
	if key == "" || len(tokens) == 0 {
		return false
	}
	for _, field := range strings.Fields(key) {
		for _, t := range tokens {
			if field == strings.ToLower(t) {
				return true
			}
		}
	}
	return false
}

func truncateTrophy(s string) string {
	if loc := trophySuffix.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
