package vitessr

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/evanw/esbuild/pkg/api"
)

// JSX is lowered to calls of these names so elements show up as plain calls in the output.
const (
	markerFactory  = "__vite_ssr_jsx__"
	markerFragment = "__vite_ssr_fragment__"
)

var jsxPragma = regexp.MustCompile(`@jsx\s+([A-Za-z_$][\w$]*)`)

// extractEntries parses one source file and returns the marker attribute values in
// document order.
func extractEntries(source []byte, filename string, markers []ComponentMarker) ([]string, error) {
	result := api.Transform(string(source), api.TransformOptions{
		Loader:      loaderFor(filename),
		JSX:         api.JSXTransform,
		JSXFactory:  markerFactory,
		JSXFragment: markerFragment,
		Target:      api.ESNext,
		Sourcefile:  filename,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrParse, formatMessage(result.Errors[0]))
	}

	factories := map[string]bool{markerFactory: true}
	for _, m := range jsxPragma.FindAllSubmatch(source, -1) {
		factories[string(m[1])] = true
	}

	toks := tokenize(string(result.Code))
	for name := range runtimeImports(toks) {
		factories[name] = true
	}
	return scanElementCalls(toks, factories, markers), nil
}

func loaderFor(filename string) api.Loader {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJSX
	}
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text)
}

// runtimeImports returns local names imported from an automatic JSX runtime, which
// replace the configured factory when a file opts in with a pragma.
func runtimeImports(toks []token) map[string]bool {
	names := map[string]bool{}
	for i := 0; i < len(toks); i++ {
		if !toks[i].is(tokIdent, "import") || i+1 >= len(toks) || !toks[i+1].is(tokPunct, "{") {
			continue
		}
		var locals []string
		j := i + 2
		for ; j < len(toks) && !toks[j].is(tokPunct, "}"); j++ {
			if toks[j].kind != tokIdent {
				continue
			}
			if j+2 < len(toks) && toks[j+1].is(tokIdent, "as") {
				locals = append(locals, toks[j+2].text)
				j += 2
				continue
			}
			locals = append(locals, toks[j].text)
		}
		if j+2 < len(toks) && toks[j+1].is(tokIdent, "from") && toks[j+2].kind == tokString {
			src := toks[j+2].text
			if strings.HasSuffix(src, "/jsx-runtime") || strings.HasSuffix(src, "/jsx-dev-runtime") {
				for _, l := range locals {
					names[l] = true
				}
			}
		}
		i = j
	}
	return names
}

// scanElementCalls walks factory calls in output order, which matches the order of the
// opening tags in the source.
func scanElementCalls(toks []token, factories map[string]bool, markers []ComponentMarker) []string {
	var out []string
	for i := 0; i+3 < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent || !factories[t.text] || !toks[i+1].is(tokPunct, "(") {
			continue
		}
		if i > 0 && toks[i-1].is(tokPunct, ".") {
			continue
		}

		tag, ok := elementName(toks, i+2)
		if !ok {
			continue
		}
		if !toks[i+3].is(tokPunct, ",") || i+4 >= len(toks) || !toks[i+4].is(tokPunct, "{") {
			continue
		}

		for _, marker := range markers {
			if marker.Name != tag {
				continue
			}
			out = append(out, literalProps(toks, i+4, marker.Attribute)...)
		}
	}
	return out
}

// elementName accepts only plain identifiers and intrinsic string tags; member
// expressions such as UI.Script are rejected.
func elementName(toks []token, i int) (string, bool) {
	t := toks[i]
	switch t.kind {
	case tokIdent:
		next := toks[i+1]
		if next.is(tokPunct, ".") || next.is(tokPunct, "[") || next.is(tokPunct, "(") {
			return "", false
		}
		return t.text, true
	case tokString:
		if strings.Contains(t.text, ":") {
			return "", false
		}
		return t.text, true
	}
	return "", false
}

// literalProps reads the object literal opening at toks[open] and returns the non-empty
// string literal values of key.
func literalProps(toks []token, open int, key string) []string {
	var out []string
	i := open + 1
	for i < len(toks) {
		if toks[i].is(tokPunct, "}") {
			return out
		}

		start := i
		end := propertyEnd(toks, i)
		prop := toks[start:end]
		if len(prop) == 3 && propertyKey(prop[0]) == key && prop[1].is(tokPunct, ":") && isLiteral(prop[2]) {
			if v := prop[2].text; v != "" {
				out = append(out, v)
			}
		}

		i = end
		if i < len(toks) && toks[i].is(tokPunct, ",") {
			i++
		}
	}
	return out
}

func propertyKey(t token) string {
	if t.kind == tokIdent || t.kind == tokString {
		return t.text
	}
	return ""
}

func isLiteral(t token) bool {
	return t.kind == tokString || (t.kind == tokTemplate && !t.subst)
}

// propertyEnd returns the index of the "," or "}" that ends the property starting at i.
func propertyEnd(toks []token, i int) int {
	depth := 0
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return i
			}
			depth--
		case ",":
			if depth == 0 {
				return i
			}
		}
	}
	return i
}

// extractEntriesRegex is the textual fallback. It also matches markup inside comments
// and strings.
func extractEntriesRegex(source []byte, markers []ComponentMarker) []string {
	type hit struct {
		pos   int
		value string
	}
	var hits []hit
	for _, m := range markers {
		re := regexp.MustCompile(`<` + regexp.QuoteMeta(m.Name) + `\b[^>]*?\b` +
			regexp.QuoteMeta(m.Attribute) + `\s*=\s*(?:"([^"]+)"|'([^']+)')`)
		for _, loc := range re.FindAllSubmatchIndex(source, -1) {
			v := ""
			switch {
			case loc[2] >= 0:
				v = string(source[loc[2]:loc[3]])
			case loc[4] >= 0:
				v = string(source[loc[4]:loc[5]])
			}
			hits = append(hits, hit{pos: loc[0], value: v})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.value)
	}
	return out
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokTemplate
	tokNumber
	tokRegex
	tokPunct
)

type token struct {
	kind tokenKind
	// text is the decoded value for strings and templates.
	text  string
	subst bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

var regexAfterKeyword = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

type lexer struct {
	src  string
	pos  int
	toks []token
	// braces records, per open "{", whether it started a template substitution.
	braces []bool
}

// tokenize splits printed JavaScript into tokens. Comments and whitespace are dropped.
func tokenize(src string) []token {
	lx := &lexer{src: src}
	lx.run()
	return lx.toks
}

func (lx *lexer) run() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "//"):
			lx.skipLine()
		case strings.HasPrefix(lx.src[lx.pos:], "/*"):
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += end + 4
			}
		case c == '"' || c == '\'':
			lx.emit(token{kind: tokString, text: lx.quoted(c)})
		case c == '`':
			lx.pos++
			lx.template(false)
		case c == '/' && lx.regexAllowed():
			lx.regex()
		case c >= '0' && c <= '9' || c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1]):
			lx.number()
		case strings.HasPrefix(lx.src[lx.pos:], "..."):
			lx.pos += 3
			lx.emit(token{kind: tokPunct, text: "..."})
		case c == '{':
			lx.pos++
			lx.braces = append(lx.braces, false)
			lx.emit(token{kind: tokPunct, text: "{"})
		case c == '}':
			lx.pos++
			if n := len(lx.braces); n > 0 {
				subst := lx.braces[n-1]
				lx.braces = lx.braces[:n-1]
				if subst {
					lx.template(true)
					continue
				}
			}
			lx.emit(token{kind: tokPunct, text: "}"})
		default:
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if isIdentStart(r) {
				lx.ident()
				continue
			}
			lx.pos += size
			lx.emit(token{kind: tokPunct, text: string(r)})
		}
	}
}

func (lx *lexer) emit(t token) {
	lx.toks = append(lx.toks, t)
}

func (lx *lexer) skipLine() {
	end := strings.IndexByte(lx.src[lx.pos:], '\n')
	if end < 0 {
		lx.pos = len(lx.src)
		return
	}
	lx.pos += end + 1
}

func (lx *lexer) regexAllowed() bool {
	if len(lx.toks) == 0 {
		return true
	}
	prev := lx.toks[len(lx.toks)-1]
	switch prev.kind {
	case tokIdent:
		return regexAfterKeyword[prev.text]
	case tokPunct:
		return prev.text != ")" && prev.text != "]" && prev.text != "}"
	default:
		return false
	}
}

func (lx *lexer) regex() {
	start := lx.pos
	lx.pos++
	inClass := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			lx.pos += 2
			continue
		case c == '\n':
			// Not a regex after all; treat the slash as division.
			lx.pos = start + 1
			lx.emit(token{kind: tokPunct, text: "/"})
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			lx.pos++
			for lx.pos < len(lx.src) && isIdentPart(rune(lx.src[lx.pos])) {
				lx.pos++
			}
			lx.emit(token{kind: tokRegex, text: lx.src[start:lx.pos]})
			return
		}
		lx.pos++
	}
	lx.emit(token{kind: tokRegex, text: lx.src[start:]})
}

func (lx *lexer) number() {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if !(isDigit(c) || c == '.' || c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			break
		}
		lx.pos++
	}
	lx.emit(token{kind: tokNumber, text: lx.src[start:lx.pos]})
}

func (lx *lexer) ident() {
	start := lx.pos
	for lx.pos < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if lx.pos > start && !isIdentPart(r) || lx.pos == start && !isIdentStart(r) {
			break
		}
		lx.pos += size
	}
	lx.emit(token{kind: tokIdent, text: lx.src[start:lx.pos]})
}

// quoted consumes a quoted string starting at the opening quote and returns its value.
func (lx *lexer) quoted(quote byte) string {
	lx.pos++
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == quote {
			lx.pos++
			return b.String()
		}
		if c == '\\' {
			lx.escape(&b)
			continue
		}
		if c == '\n' {
			return b.String()
		}
		b.WriteByte(c)
		lx.pos++
	}
	return b.String()
}

// template consumes template text up to the closing backtick or the next "${".
// Any piece of a template with substitutions is emitted with subst set; resumed marks
// text that follows a "}".
func (lx *lexer) template(resumed bool) {
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '`':
			lx.pos++
			lx.emit(token{kind: tokTemplate, text: b.String(), subst: resumed})
			return
		case c == '\\':
			lx.escape(&b)
		case c == '$' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '{':
			lx.pos += 2
			lx.emit(token{kind: tokTemplate, text: b.String(), subst: true})
			lx.braces = append(lx.braces, true)
			return
		default:
			b.WriteByte(c)
			lx.pos++
		}
	}
	lx.emit(token{kind: tokTemplate, text: b.String(), subst: true})
}

func (lx *lexer) escape(b *strings.Builder) {
	lx.pos++
	if lx.pos >= len(lx.src) {
		return
	}
	c := lx.src[lx.pos]
	lx.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case '\r':
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '\n' {
			lx.pos++
		}
	case '\n':
	case 'x':
		if lx.pos+2 <= len(lx.src) {
			if v, err := strconv.ParseUint(lx.src[lx.pos:lx.pos+2], 16, 8); err == nil {
				b.WriteRune(rune(v))
				lx.pos += 2
			}
		}
	case 'u':
		lx.unicodeEscape(b)
	default:
		b.WriteByte(c)
	}
}

func (lx *lexer) unicodeEscape(b *strings.Builder) {
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '{' {
		end := strings.IndexByte(lx.src[lx.pos:], '}')
		if end < 0 {
			return
		}
		if v, err := strconv.ParseUint(lx.src[lx.pos+1:lx.pos+end], 16, 32); err == nil {
			b.WriteRune(rune(v))
		}
		lx.pos += end + 1
		return
	}
	if lx.pos+4 > len(lx.src) {
		return
	}
	v, err := strconv.ParseUint(lx.src[lx.pos:lx.pos+4], 16, 16)
	if err != nil {
		return
	}
	lx.pos += 4
	r := rune(v)
	if utf16Surrogate(r) && strings.HasPrefix(lx.src[lx.pos:], `\u`) && lx.pos+6 <= len(lx.src) {
		if lo, err := strconv.ParseUint(lx.src[lx.pos+2:lx.pos+6], 16, 16); err == nil {
			r = (r-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
			lx.pos += 6
		}
	}
	b.WriteRune(r)
}

func utf16Surrogate(r rune) bool {
	return r >= 0xD800 && r < 0xDC00
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || r == '#' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
