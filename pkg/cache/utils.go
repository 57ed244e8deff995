package cache

import (
	"fmt"
	"strings"
)

// GenerateKey joins prefix and params with ':'.
func GenerateKey(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
