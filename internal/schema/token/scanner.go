// Package token scans schema definition source into tokens.
package token

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/electwix/schemaflow/internal/diagnostics"
)

const eofRune = -1

// Scan tokenizes the provided schema source. The returned stream is always
// terminated by an EOF token. Malformed input never fails the scan: unknown
// characters become Invalid tokens and unterminated literals are dropped,
// both reported through the returned warnings.
func Scan(path string, src []byte) ([]Token, []diagnostics.Diagnostic, error) {
	if !utf8.Valid(src) {
		return nil, nil, diagnostics.Errorf(diagnostics.SourceLexer, path, 1, 1, "input is not valid UTF-8")
	}
	s := &Scanner{
		path:   path,
		src:    string(src),
		tokens: make([]Token, 0, len(src)/4+1),
		line:   1,
		column: 1,
	}
	s.scan()
	return s.tokens, s.warnings, nil
}

// Scanner maintains scanning state over a schema source.
type Scanner struct {
	path     string
	src      string
	tokens   []Token
	warnings []diagnostics.Diagnostic
	index    int
	line     int
	column   int

	// jsonPending is set after a json type keyword so the next { ... } block
	// is captured verbatim instead of being tokenized.
	jsonPending bool
}

func (s *Scanner) scan() {
	for s.index < len(s.src) {
		r := s.peek()
		switch {
		case r == eofRune:
			s.index = len(s.src)
		case unicode.IsSpace(r):
			s.consumeWhitespace()
		case r == '/' && s.peekNext() == '/':
			s.consumeLineComment()
		case r == '/' && s.peekNext() == '*':
			s.consumeBlockComment()
		case r == '\'' || r == '"':
			s.consumeStringLiteral()
		case r == '@':
			s.consumeAnnotationMarker()
		case r == '{' && s.jsonPending:
			s.consumeRawBlock()
		case isIdentifierStart(r):
			s.consumeIdentifier()
		case isDigit(r):
			s.consumeNumber()
		case isSymbolRune(r):
			startLine, startCol := s.line, s.column
			s.advance()
			s.emitToken(KindSymbol, string(r), startLine, startCol)
		default:
			startLine, startCol := s.line, s.column
			s.advance()
			s.warnf(startLine, startCol, "unknown character %q", r)
			s.emitToken(KindInvalid, string(r), startLine, startCol)
		}
	}
	s.emitToken(KindEOF, "", s.line, s.column)
}

func (s *Scanner) consumeWhitespace() {
	for {
		r := s.peek()
		if r == eofRune || !unicode.IsSpace(r) {
			return
		}
		s.advance()
	}
}

func (s *Scanner) consumeLineComment() {
	for {
		r := s.peek()
		if r == eofRune || r == '\n' || r == '\r' {
			return
		}
		s.advance()
	}
}

func (s *Scanner) consumeBlockComment() {
	startLine, startCol := s.line, s.column
	s.advance() // '/'
	s.advance() // '*'
	for {
		if s.index >= len(s.src) {
			s.warnf(startLine, startCol, "unterminated block comment")
			return
		}
		if s.peek() == '*' && s.peekNext() == '/' {
			s.advance()
			s.advance()
			return
		}
		s.advance()
	}
}

// consumeStringLiteral scans a single- or double-quoted string. Backslash
// escapes are passed through without interpretation. An unterminated literal
// is dropped with a warning.
func (s *Scanner) consumeStringLiteral() {
	startLine, startCol := s.line, s.column
	quote := s.peek()
	s.advance() // opening quote
	var content strings.Builder
	for {
		r := s.peek()
		if r == eofRune || r == '\n' {
			s.warnf(startLine, startCol, "unterminated string literal")
			return
		}
		if r == '\\' {
			content.WriteRune(r)
			s.advance()
			next := s.peek()
			if next != eofRune {
				content.WriteRune(next)
				s.advance()
			}
			continue
		}
		if r == quote {
			s.advance()
			s.emitToken(KindString, content.String(), startLine, startCol)
			return
		}
		content.WriteRune(r)
		s.advance()
	}
}

// consumeAnnotationMarker handles @ (decorator introducer, a plain symbol)
// and @@name (composite block marker).
func (s *Scanner) consumeAnnotationMarker() {
	startLine, startCol := s.line, s.column
	s.advance() // first '@'
	if s.peek() != '@' {
		s.emitToken(KindSymbol, "@", startLine, startCol)
		return
	}
	s.advance() // second '@'
	if !isIdentifierStart(s.peek()) {
		s.warnf(startLine, startCol, "expected name after @@")
		s.emitToken(KindInvalid, "@@", startLine, startCol)
		return
	}
	nameStart := s.index
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	name := s.src[nameStart:s.index]
	if !IsCompositeMarker(name) {
		s.warnf(startLine, startCol, "unknown composite marker @@%s", name)
		s.emitToken(KindInvalid, "@@"+name, startLine, startCol)
		return
	}
	s.emitToken(KindComposite, name, startLine, startCol)
}

// consumeRawBlock captures a balanced { ... } block verbatim as one token.
// The block is not tokenized: it describes a json sub-type shape and is
// handed to the parser as raw text.
func (s *Scanner) consumeRawBlock() {
	startLine, startCol := s.line, s.column
	startIdx := s.index
	depth := 0
	for {
		r := s.peek()
		if r == eofRune {
			s.warnf(startLine, startCol, "unterminated json type block")
			return
		}
		if r == '{' {
			depth++
		}
		if r == '}' {
			depth--
		}
		s.advance()
		if depth == 0 {
			break
		}
	}
	s.emitToken(KindRawBlock, s.src[startIdx:s.index], startLine, startCol)
}

func (s *Scanner) consumeIdentifier() {
	startIdx := s.index
	startLine, startCol := s.line, s.column
	s.advance()
	for isIdentifierPart(s.peek()) {
		s.advance()
	}
	text := s.src[startIdx:s.index]
	if IsKeyword(text) {
		s.emitToken(KindKeyword, text, startLine, startCol)
		return
	}
	s.emitToken(KindIdentifier, text, startLine, startCol)
}

func (s *Scanner) consumeNumber() {
	startIdx := s.index
	startLine, startCol := s.line, s.column
	s.advanceDigits()
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		s.advanceDigits()
	}
	s.emitToken(KindNumber, s.src[startIdx:s.index], startLine, startCol)
}

func (s *Scanner) advanceDigits() {
	for isDigit(s.peek()) {
		s.advance()
	}
}

func (s *Scanner) emitToken(kind Kind, text string, line, column int) {
	// json and json[] switch the scanner into raw capture mode for the
	// following brace block; [ and ] in between keep it armed.
	switch {
	case kind == KindKeyword && text == "json":
		s.jsonPending = true
	case kind == KindSymbol && (text == "[" || text == "]") && s.jsonPending:
		// keep pending across the array marker
	case kind == KindRawBlock:
		s.jsonPending = false
	default:
		s.jsonPending = false
	}
	s.tokens = append(s.tokens, Token{
		Kind:   kind,
		Text:   text,
		File:   s.path,
		Line:   line,
		Column: column,
	})
}

func (s *Scanner) warnf(line, column int, format string, args ...any) {
	s.warnings = append(s.warnings, diagnostics.Warnf(diagnostics.SourceLexer, s.path, line, column, format, args...))
}

func (s *Scanner) peek() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[s.index:])
	return r
}

func (s *Scanner) peekNext() rune {
	idx := s.index
	if idx >= len(s.src) {
		return eofRune
	}
	_, size := utf8.DecodeRuneInString(s.src[idx:])
	idx += size
	if idx >= len(s.src) {
		return eofRune
	}
	r, _ := utf8.DecodeRuneInString(s.src[idx:])
	return r
}

func (s *Scanner) advance() rune {
	if s.index >= len(s.src) {
		return eofRune
	}
	r, size := utf8.DecodeRuneInString(s.src[s.index:])
	s.index += size
	switch r {
	case '\r':
		if s.index < len(s.src) && s.src[s.index] == '\n' {
			s.index++
		}
		s.line++
		s.column = 1
		return '\n'
	case '\n':
		s.line++
		s.column = 1
	default:
		s.column++
	}
	return r
}

func isIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentifierPart(r rune) bool {
	return isIdentifierStart(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isSymbolRune(r rune) bool {
	switch r {
	case '{', '}', '(', ')', '[', ']', ',', ':':
		return true
	}
	return false
}
