// Package scanner finds the module specifiers of ES module source text.
//
// It is a byte-level scanner, not a parser: it recognises static imports,
// re-exports, side-effect imports and dynamic imports with a literal
// argument, and reports where each specifier sits so callers can rewrite it
// in place. String, template and regular expression literals and comments
// are skipped so their contents never produce matches.
package scanner

// Kind classifies how a specifier was imported.
type Kind uint8

const (
	// KindStatic is `import x from "s"` or `import {a} from "s"`.
	KindStatic Kind = iota
	// KindSideEffect is `import "s"`.
	KindSideEffect
	// KindExportFrom is `export {a} from "s"` or `export * from "s"`.
	KindExportFrom
	// KindDynamic is `import("s")` with a string literal argument.
	KindDynamic
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindSideEffect:
		return "side-effect"
	case KindExportFrom:
		return "export-from"
	case KindDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// Import is one specifier occurrence. Start and End are byte offsets of the
// specifier text, excluding the quotes, so code[Start:End] == Specifier.
type Import struct {
	Specifier string
	Start     int
	End       int
	Kind      Kind
}

// Scan returns the imports of code in source order.
func Scan(code []byte) []Import {
	var imports []Import
	// regexOK is true when a '/' at this point opens a regular expression
	// literal rather than a division.
	regexOK := true
	i := 0
	for i < len(code) {
		c := code[i]
		switch {
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			i = skipLineComment(code, i)
		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			i = skipBlockComment(code, i)
		case c == '/' && regexOK:
			i = skipRegex(code, i)
			regexOK = false
		case c == '\'' || c == '"':
			i = skipString(code, i)
			regexOK = false
		case c == '`':
			i = skipTemplate(code, i)
			regexOK = false
		case c == 'i' && isKeywordAt(code, i, "import"):
			var imp Import
			var ok bool
			imp, i, ok = scanImport(code, i+len("import"))
			if ok {
				imports = append(imports, imp)
			}
			regexOK = ok
		case c == 'e' && isKeywordAt(code, i, "export"):
			var imp Import
			var ok bool
			imp, i, ok = scanExport(code, i+len("export"))
			if ok {
				imports = append(imports, imp)
			}
			regexOK = ok
		case isIdentChar(c):
			start := i
			for i < len(code) && isIdentChar(code[i]) {
				i++
			}
			regexOK = precedesExpression(code[start:i])
		case isWhiteSpace(c):
			i++
		default:
			regexOK = c != ')' && c != ']'
			i++
		}
	}
	return imports
}

// Specifiers returns just the specifier strings of code.
func Specifiers(code []byte) []string {
	imports := Scan(code)
	out := make([]string, len(imports))
	for idx, imp := range imports {
		out[idx] = imp.Specifier
	}
	return out
}

func scanImport(code []byte, i int) (Import, int, bool) {
	j := skipTrivia(code, i)
	if j >= len(code) {
		return Import{}, j, false
	}
	switch code[j] {
	case '(':
		j = skipTrivia(code, j+1)
		if j >= len(code) || (code[j] != '\'' && code[j] != '"') {
			return Import{}, j, false
		}
		spec, start, end, next, ok := readLiteral(code, j)
		if !ok {
			return Import{}, next, false
		}
		after := skipTrivia(code, next)
		if after >= len(code) || (code[after] != ')' && code[after] != ',') {
			return Import{}, next, false
		}
		return Import{Specifier: spec, Start: start, End: end, Kind: KindDynamic}, next, true
	case '\'', '"':
		spec, start, end, next, ok := readLiteral(code, j)
		if !ok {
			return Import{}, next, false
		}
		return Import{Specifier: spec, Start: start, End: end, Kind: KindSideEffect}, next, true
	case '.':
		// import.meta
		return Import{}, j + 1, false
	}
	return scanFromClause(code, j, KindStatic)
}

func scanExport(code []byte, i int) (Import, int, bool) {
	j := skipTrivia(code, i)
	if j >= len(code) || (code[j] != '{' && code[j] != '*') {
		return Import{}, j, false
	}
	return scanFromClause(code, j, KindExportFrom)
}

// scanFromClause walks the binding list of an import or re-export up to its
// `from "specifier"`. It gives up at anything that cannot appear in a
// binding list, such as `;` or `=`.
func scanFromClause(code []byte, j int, kind Kind) (Import, int, bool) {
	for j < len(code) {
		j = skipTrivia(code, j)
		if j >= len(code) {
			break
		}
		c := code[j]
		switch {
		case c == '{':
			end := indexByteFrom(code, j+1, '}')
			if end < 0 {
				return Import{}, len(code), false
			}
			j = end + 1
		case c == '*' || c == ',':
			j++
		case isKeywordAt(code, j, "from"):
			k := skipTrivia(code, j+len("from"))
			if k < len(code) && (code[k] == '\'' || code[k] == '"') {
				spec, start, end, next, ok := readLiteral(code, k)
				if !ok {
					return Import{}, next, false
				}
				return Import{Specifier: spec, Start: start, End: end, Kind: kind}, next, true
			}
			j += len("from")
		case isKeywordAt(code, j, "import") || isKeywordAt(code, j, "export"):
			return Import{}, j, false
		case isIdentChar(c):
			for j < len(code) && isIdentChar(code[j]) {
				j++
			}
		default:
			return Import{}, j, false
		}
	}
	return Import{}, j, false
}

// readLiteral reads the quoted string at i. Specifiers never contain
// escapes or newlines, so either ends the attempt.
func readLiteral(code []byte, i int) (spec string, start, end, next int, ok bool) {
	quote := code[i]
	start = i + 1
	for k := start; k < len(code); k++ {
		switch code[k] {
		case quote:
			return string(code[start:k]), start, k, k + 1, true
		case '\\', '\n':
			return "", 0, 0, skipString(code, i), false
		}
	}
	return "", 0, 0, len(code), false
}

func skipTrivia(code []byte, i int) int {
	for i < len(code) {
		switch {
		case isWhiteSpace(code[i]):
			i++
		case code[i] == '/' && i+1 < len(code) && code[i+1] == '/':
			i = skipLineComment(code, i)
		case code[i] == '/' && i+1 < len(code) && code[i+1] == '*':
			i = skipBlockComment(code, i)
		default:
			return i
		}
	}
	return i
}

func skipLineComment(code []byte, i int) int {
	for i < len(code) && code[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(code []byte, i int) int {
	for k := i + 2; k+1 < len(code); k++ {
		if code[k] == '*' && code[k+1] == '/' {
			return k + 2
		}
	}
	return len(code)
}

func skipString(code []byte, i int) int {
	quote := code[i]
	for k := i + 1; k < len(code); k++ {
		switch code[k] {
		case '\\':
			k++
		case quote, '\n':
			return k + 1
		}
	}
	return len(code)
}

// skipTemplate skips a template literal. Substitutions are skipped with
// it, so imports inside `${}` are not reported.
func skipTemplate(code []byte, i int) int {
	for k := i + 1; k < len(code); k++ {
		switch code[k] {
		case '\\':
			k++
		case '`':
			return k + 1
		}
	}
	return len(code)
}

// skipRegex skips the regular expression literal at i, including its
// flags. A '/' inside a character class does not end it. An unterminated
// literal ends at the line break.
func skipRegex(code []byte, i int) int {
	inClass := false
	for k := i + 1; k < len(code); k++ {
		switch code[k] {
		case '\\':
			k++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return k
		case '/':
			if inClass {
				continue
			}
			k++
			for k < len(code) && isIdentChar(code[k]) {
				k++
			}
			return k
		}
	}
	return len(code)
}

// precedesExpression reports whether word is a keyword after which an
// expression, and so a regular expression literal, can start.
func precedesExpression(word []byte) bool {
	switch string(word) {
	case "return", "typeof", "instanceof", "in", "of", "new", "delete", "void",
		"throw", "case", "do", "else", "yield", "await", "default":
		return true
	}
	return false
}

func indexByteFrom(code []byte, i int, b byte) int {
	for k := i; k < len(code); k++ {
		if code[k] == b {
			return k
		}
	}
	return -1
}

// isKeywordAt reports whether word starts at i as a whole token that is not
// a property access such as obj.import.
func isKeywordAt(code []byte, i int, word string) bool {
	if i+len(word) > len(code) || string(code[i:i+len(word)]) != word {
		return false
	}
	if end := i + len(word); end < len(code) && isIdentChar(code[end]) {
		return false
	}
	if i > 0 && (isIdentChar(code[i-1]) || code[i-1] == '.') {
		return false
	}
	return true
}

func isWhiteSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_' || c == '$'
}
