package content

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-enry/go-enry/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/fulmenhq/preflight/pkg/findings"
)

// sensitiveModules are namespaces whose members spawn processes, touch the
// filesystem or open raw sockets.
var sensitiveModules = map[string]bool{
	"child_process": true,
	"fs":            true,
	"fs/promises":   true,
	"net":           true,
	"dgram":         true,
	"tls":           true,
	"http":          true,
	"https":         true,
	"http2":         true,
}

// trustedHosts may appear in https:// literals without a finding. Subdomains match.
var trustedHosts = []string{
	"github.com",
	"githubusercontent.com",
	"npmjs.com",
	"npmjs.org",
	"nodejs.org",
	"yarnpkg.com",
	"unpkg.com",
	"jsdelivr.net",
	"mozilla.org",
	"w3.org",
	"microsoft.com",
	"googleapis.com",
}

var (
	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	urlPattern  = regexp.MustCompile("https?://[^\\s'\"`<>]+")
)

// grammarFor picks a tree-sitter grammar for the JS/TS family by extension,
// falling back to linguist detection for less common extensions. JSON and
// everything else return nil.
func grammarFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return nil
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".js", ".jsx", ".mjs", ".cjs":
		return javascript.GetLanguage()
	}
	for _, lang := range enry.GetLanguagesByExtension(filepath.Base(path), nil, nil) {
		switch lang {
		case "TypeScript":
			return typescript.GetLanguage()
		case "TSX":
			return tsx.GetLanguage()
		case "JavaScript":
			return javascript.GetLanguage()
		}
	}
	return nil
}

// isJSON reports whether path is a JSON document.
func isJSON(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return true
	}
	for _, lang := range enry.GetLanguagesByExtension(filepath.Base(path), nil, nil) {
		if lang == "JSON" || lang == "JSON with Comments" || lang == "JSON5" {
			return true
		}
	}
	return false
}

type syntaxWalker struct {
	src     []byte
	lines   []string
	aliases map[string]string
	out     []findings.Finding
}

// analyzeSyntax parses src and applies the syntax-tree rules. Any parse
// failure, including a tree with error nodes, yields no findings.
func analyzeSyntax(src []byte, lang *sitter.Language) []findings.Finding {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	w := &syntaxWalker{
		src:     src,
		lines:   strings.Split(string(src), "\n"),
		aliases: make(map[string]string),
	}
	w.walk(root, w.collectAlias)
	w.walk(root, w.visit)
	return w.out
}

// walk visits every named node depth-first without recursion.
func (w *syntaxWalker) walk(root *sitter.Node, fn func(*sitter.Node)) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
			if child := n.NamedChild(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// collectAlias records `const cp = require('child_process')` bindings.
func (w *syntaxWalker) collectAlias(n *sitter.Node) {
	if n.Type() != "variable_declarator" {
		return
	}
	name := n.ChildByFieldName("name")
	value := n.ChildByFieldName("value")
	if name == nil || value == nil || name.Type() != "identifier" {
		return
	}
	if mod, ok := w.requiredModule(value); ok {
		w.aliases[name.Content(w.src)] = mod
	}
}

func (w *syntaxWalker) visit(n *sitter.Node) {
	switch n.Type() {
	case "call_expression":
		w.visitCall(n)
	case "new_expression":
		if ctor := n.ChildByFieldName("constructor"); ctor != nil && ctor.Type() == "identifier" && ctor.Content(w.src) == "Function" {
			w.emit(n, "Function Constructor", findings.SeverityHigh, "Builds a function from a string with new Function()")
		}
	case "member_expression":
		obj := n.ChildByFieldName("object")
		prop := n.ChildByFieldName("property")
		if obj != nil && prop != nil && obj.Type() == "identifier" &&
			obj.Content(w.src) == "process" && prop.Content(w.src) == "env" {
			w.emit(n, "Environment Access", findings.SeverityLow, "Reads process.env")
		}
	case "string", "template_string":
		w.visitLiteral(n)
	}
}

func (w *syntaxWalker) visitCall(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}

	switch fn.Type() {
	case "identifier":
		switch fn.Content(w.src) {
		case "eval":
			w.emit(n, "Dynamic Code Evaluation", findings.SeverityHigh, "Calls eval() on runtime data")
		case "Function":
			w.emit(n, "Function Constructor", findings.SeverityHigh, "Builds a function from a string with Function()")
		}
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if obj != nil && prop != nil {
			if mod, ok := w.moduleOf(obj); ok {
				member := prop.Content(w.src)
				w.emit(n, "Sensitive Module Call", findings.SeverityMedium,
					fmt.Sprintf("Calls %s.%s", mod, member))
			}
		}
	}

	if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() >= 2 {
		second := args.NamedChild(1)
		if second != nil && second.Type() == "string" && unquote(second.Content(w.src)) == "base64" {
			w.emit(n, "Base64 Decoding", findings.SeverityMedium, "Decodes base64 data at runtime")
		}
	}
}

// moduleOf resolves an object expression to a sensitive module name, either
// an identifier named after the module, a recorded alias or an inline require().
func (w *syntaxWalker) moduleOf(obj *sitter.Node) (string, bool) {
	switch obj.Type() {
	case "identifier":
		name := obj.Content(w.src)
		if sensitiveModules[name] {
			return name, true
		}
		if mod, ok := w.aliases[name]; ok {
			return mod, true
		}
	case "call_expression":
		return w.requiredModule(obj)
	case "parenthesized_expression":
		if obj.NamedChildCount() == 1 {
			return w.moduleOf(obj.NamedChild(0))
		}
	}
	return "", false
}

// requiredModule matches require('<sensitive module>').
func (w *syntaxWalker) requiredModule(n *sitter.Node) (string, bool) {
	if n.Type() != "call_expression" {
		return "", false
	}
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || fn.Type() != "identifier" || fn.Content(w.src) != "require" {
		return "", false
	}
	if args.NamedChildCount() < 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg == nil || arg.Type() != "string" {
		return "", false
	}
	mod := strings.TrimPrefix(unquote(arg.Content(w.src)), "node:")
	return mod, sensitiveModules[mod]
}

func (w *syntaxWalker) visitLiteral(n *sitter.Node) {
	text := unquote(n.Content(w.src))
	if text == "" {
		return
	}

	for _, ip := range ipv4Pattern.FindAllString(text, -1) {
		parsed := net.ParseIP(ip)
		if parsed == nil || parsed.IsLoopback() || parsed.IsUnspecified() {
			continue
		}
		w.emit(n, "Hardcoded IP Address", findings.SeverityMedium,
			fmt.Sprintf("String literal contains IP address %s", ip))
	}

	for _, raw := range urlPattern.FindAllString(text, -1) {
		switch {
		case strings.HasPrefix(raw, "http://"):
			w.emit(n, "Insecure URL", findings.SeverityMedium,
				fmt.Sprintf("Plain HTTP URL %s", raw))
		case !trustedURL(raw):
			w.emit(n, "Untrusted Remote URL", findings.SeverityMedium,
				fmt.Sprintf("HTTPS URL on a host outside the trusted list: %s", raw))
		}
	}
}

func trustedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range trustedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (w *syntaxWalker) emit(n *sitter.Node, label string, sev findings.Severity, desc string) {
	row := int(n.StartPoint().Row)
	snippet := ""
	if row < len(w.lines) {
		snippet = findings.Snippet(w.lines[row])
	}
	w.out = append(w.out, findings.Finding{
		Kind:        findings.KindSyntaxRule,
		Label:       label,
		Line:        row + 1,
		Severity:    sev,
		Snippet:     snippet,
		Description: desc,
	})
}

// unquote strips one layer of matching quotes or backticks.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
