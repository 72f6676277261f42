package tcl

import (
	goerrors "errors"

	"github.com/slopdrop/slopdrop/pkg/errors"
)

// SegmentKind identifies how a word segment is resolved at evaluation time.
type SegmentKind int

const (
	// SegLiteral is verbatim text.
	SegLiteral SegmentKind = iota
	// SegVariable is a $name reference resolved against the current frame.
	SegVariable
	// SegScript is a [command] substitution evaluated innermost-first.
	SegScript
)

// Segment is one fragment of a word. A word's value is the concatenation of
// its resolved segments.
type Segment struct {
	Kind SegmentKind
	Text string
}

// Word is one whitespace-delimited unit of a command. A braced word is a
// single verbatim literal; substitution inside it is deferred until some
// command re-parses it (proc bodies, if/while blocks, expr operands).
type Word struct {
	Segments []Segment
	Braced   bool
}

// Literal returns the word's text if it is a single literal segment, and
// whether that was the case. Used by the privilege gate to classify top-level
// commands without evaluating anything.
func (w Word) Literal() (string, bool) {
	if len(w.Segments) == 1 && w.Segments[0].Kind == SegLiteral {
		return w.Segments[0].Text, true
	}
	return "", false
}

// Command is one parsed command invocation: a sequence of words, the first
// of which names the command after substitution.
type Command struct {
	Words []Word
	Pos   int // byte offset in the source
}

// Name returns the command's literal name if statically known.
func (c Command) Name() (string, bool) {
	if len(c.Words) == 0 {
		return "", false
	}
	return c.Words[0].Literal()
}

// Parse tokenizes source text into a sequence of commands. It performs no
// evaluation and touches no environment, so it can be reused for procedure
// bodies and nested command substitution. Unbalanced braces, brackets, or
// quotes yield a *errors.ParseError naming the unterminated construct.
func Parse(source string) ([]Command, error) {
	p := &parser{src: source}
	return p.parseScript()
}

// IsParseError reports whether err is a parse failure.
func IsParseError(err error) bool {
	var pe *errors.ParseError
	return goerrors.As(err, &pe)
}

type parser struct {
	src string
	pos int
}

func (p *parser) parseScript() ([]Command, error) {
	var cmds []Command
	for {
		p.skipBlank()
		if p.pos >= len(p.src) {
			return cmds, nil
		}
		// Comment: a # where a command would start runs to end of line.
		if p.src[p.pos] == '#' {
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		if len(cmd.Words) > 0 {
			cmds = append(cmds, cmd)
		}
	}
}

// skipBlank consumes whitespace, command separators, and escaped newlines.
func (p *parser) skipBlank() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';':
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		default:
			return
		}
	}
}

// skipSpace consumes intra-command whitespace (not separators).
func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			p.pos++
		case c == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		default:
			return
		}
	}
}

func (p *parser) parseCommand() (Command, error) {
	cmd := Command{Pos: p.pos}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return cmd, nil
		}
		c := p.src[p.pos]
		if c == '\n' || c == ';' {
			p.pos++
			return cmd, nil
		}
		w, err := p.parseWord()
		if err != nil {
			return Command{}, err
		}
		cmd.Words = append(cmd.Words, w)
	}
}

func (p *parser) parseWord() (Word, error) {
	switch p.src[p.pos] {
	case '{':
		return p.parseBracedWord()
	case '"':
		return p.parseQuotedWord()
	default:
		return p.parseBareWord()
	}
}

// parseBracedWord consumes {...} and returns its content verbatim.
func (p *parser) parseBracedWord() (Word, error) {
	start := p.pos
	p.pos++ // opening brace
	depth := 1
	begin := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			if p.pos+1 < len(p.src) {
				p.pos++
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				content := p.src[begin:p.pos]
				p.pos++
				return Word{Braced: true, Segments: []Segment{{Kind: SegLiteral, Text: content}}}, nil
			}
		}
		p.pos++
	}
	return Word{}, errors.NewParseError("brace", start)
}

// parseQuotedWord consumes "..." allowing embedded $ and [] substitution.
func (p *parser) parseQuotedWord() (Word, error) {
	start := p.pos
	p.pos++ // opening quote
	var w Word
	var lit []byte
	flush := func() {
		if len(lit) > 0 {
			w.Segments = append(w.Segments, Segment{Kind: SegLiteral, Text: string(lit)})
			lit = nil
		}
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			flush()
			if len(w.Segments) == 0 {
				w.Segments = []Segment{{Kind: SegLiteral, Text: ""}}
			}
			return w, nil
		case '\\':
			s, ok := p.parseEscape()
			if !ok {
				return Word{}, errors.NewParseError("quote", start)
			}
			lit = append(lit, s...)
		case '$':
			seg, consumed := p.parseVarRef()
			if consumed {
				flush()
				w.Segments = append(w.Segments, seg)
			} else {
				lit = append(lit, '$')
				p.pos++
			}
		case '[':
			seg, err := p.parseScriptSeg()
			if err != nil {
				return Word{}, err
			}
			flush()
			w.Segments = append(w.Segments, seg)
		default:
			lit = append(lit, c)
			p.pos++
		}
	}
	return Word{}, errors.NewParseError("quote", start)
}

// parseBareWord consumes an unquoted word ending at whitespace or a command
// separator.
func (p *parser) parseBareWord() (Word, error) {
	var w Word
	var lit []byte
	flush := func() {
		if len(lit) > 0 {
			w.Segments = append(w.Segments, Segment{Kind: SegLiteral, Text: string(lit)})
			lit = nil
		}
	}
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == ';':
			flush()
			return w, nil
		case c == '\\':
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
				flush()
				return w, nil
			}
			s, ok := p.parseEscape()
			if !ok {
				lit = append(lit, '\\')
				p.pos++
				continue
			}
			lit = append(lit, s...)
		case c == '$':
			seg, consumed := p.parseVarRef()
			if consumed {
				flush()
				w.Segments = append(w.Segments, seg)
			} else {
				lit = append(lit, '$')
				p.pos++
			}
		case c == '[':
			seg, err := p.parseScriptSeg()
			if err != nil {
				return Word{}, err
			}
			flush()
			w.Segments = append(w.Segments, seg)
		default:
			lit = append(lit, c)
			p.pos++
		}
	}
	flush()
	return w, nil
}

// parseEscape consumes a backslash escape and returns its expansion.
func (p *parser) parseEscape() (string, bool) {
	if p.pos+1 >= len(p.src) {
		return "", false
	}
	c := p.src[p.pos+1]
	p.pos += 2
	switch c {
	case 'n':
		return "\n", true
	case 't':
		return "\t", true
	case 'r':
		return "\r", true
	default:
		return string(c), true
	}
}

// parseVarRef consumes a $name or ${name} reference. If no variable name
// follows the dollar sign, nothing is consumed and the $ is literal.
func (p *parser) parseVarRef() (Segment, bool) {
	i := p.pos + 1 // past $
	if i < len(p.src) && p.src[i] == '{' {
		j := i + 1
		for j < len(p.src) && p.src[j] != '}' {
			j++
		}
		if j >= len(p.src) {
			return Segment{}, false
		}
		name := p.src[i+1 : j]
		p.pos = j + 1
		return Segment{Kind: SegVariable, Text: name}, true
	}
	j := i
	for j < len(p.src) && isVarNameChar(p.src[j]) {
		j++
	}
	if j == i {
		return Segment{}, false
	}
	name := p.src[i:j]
	p.pos = j
	return Segment{Kind: SegVariable, Text: name}, true
}

// parseScriptSeg consumes a [script] substitution, respecting nested
// brackets, braces, and quotes.
func (p *parser) parseScriptSeg() (Segment, error) {
	start := p.pos
	p.pos++ // opening bracket
	begin := p.pos
	depth := 1
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			if p.pos+1 < len(p.src) {
				p.pos++
			}
		case '{':
			if err := p.skipBracedRegion(); err != nil {
				return Segment{}, err
			}
			continue
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				script := p.src[begin:p.pos]
				p.pos++
				return Segment{Kind: SegScript, Text: script}, nil
			}
		}
		p.pos++
	}
	return Segment{}, errors.NewParseError("bracket", start)
}

// skipBracedRegion advances past a balanced {...} region, cursor on '{'.
func (p *parser) skipBracedRegion() error {
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			if p.pos+1 < len(p.src) {
				p.pos++
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	return errors.NewParseError("brace", start)
}

func isVarNameChar(c byte) bool {
	return c == '_' || c == ':' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
