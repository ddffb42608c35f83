package workflow

import "strings"

// xpathLiteral quotes s for use inside an XPath expression. XPath 1.0 has no
// escaping inside string literals, so strings containing both quote kinds
// need concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	return `concat('` + strings.Join(parts, `', "'", '`) + `')`
}
