package browser

import (
	"fmt"
	"regexp"
	"strings"
)

// kind of query a selector compiles to
type queryKind int

const (
	queryCSS queryKind = iota
	queryXPath
)

type compiledSelector struct {
	kind  queryKind
	query string
}

var hasTextRe = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*):has-text\((['"])(.*)(['"])\)$`)

// compileSelector turns a portal selector into either a CSS query or an
// XPath expression. Two non-CSS forms are supported:
//
//	text=X            element whose direct text contains X
//	tag:has-text('X') tag whose subtree text contains X
func compileSelector(selector string) compiledSelector {
	selector = strings.TrimSpace(selector)

	if rest, ok := strings.CutPrefix(selector, "text="); ok {
		return compiledSelector{
			kind:  queryXPath,
			query: fmt.Sprintf("//*[text()[contains(normalize-space(.), %s)]]", xpathLiteral(rest)),
		}
	}

	if m := hasTextRe.FindStringSubmatch(selector); m != nil {
		return compiledSelector{
			kind:  queryXPath,
			query: fmt.Sprintf("//%s[contains(normalize-space(.), %s)]", strings.ToLower(m[1]), xpathLiteral(m[3])),
		}
	}

	return compiledSelector{kind: queryCSS, query: selector}
}

// xpathLiteral quotes s for use inside an XPath expression. XPath 1.0 has
// no string escaping, so a value containing both quote kinds is split into
// a concat() of safely quoted pieces.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// jsStringLiteral quotes s as a JavaScript string literal.
func jsStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// lookupJS returns a JavaScript expression resolving the first element
// matched by selector, or null.
func lookupJS(selector string) string {
	c := compileSelector(selector)
	if c.kind == queryXPath {
		return fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			jsStringLiteral(c.query),
		)
	}
	return fmt.Sprintf("document.querySelector(%s)", jsStringLiteral(c.query))
}

// lookupAllJS returns a JavaScript expression resolving an array of every
// element matched by selector.
func lookupAllJS(selector string) string {
	c := compileSelector(selector)
	if c.kind == queryXPath {
		return fmt.Sprintf(`(function() {
			const it = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			const out = [];
			for (let i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
			return out;
		})()`, jsStringLiteral(c.query))
	}
	return fmt.Sprintf("Array.from(document.querySelectorAll(%s))", jsStringLiteral(c.query))
}
