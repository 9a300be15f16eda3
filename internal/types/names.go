package types

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NameKey は名前の大文字小文字を区別しない比較用キーを返す。
// cases.Caser は goroutine 間で共有できないため毎回生成する。
func NameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

// SameName reports whether a and b are equal ignoring case.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
