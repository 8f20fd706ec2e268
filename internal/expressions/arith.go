package expressions

import "strconv"

// EvalArith evaluates a restricted arithmetic expression over numeric
// literals: + - * / with conventional precedence, unary minus, and
// parentheses. Returns (value, true) on success. Any lex or parse failure
// returns (0, false) so callers can fall back to the raw string instead of
// erroring; set_variable nodes depend on that contract.
func EvalArith(expr string) (float64, bool) {
	toks, ok := lexArith(expr)
	if !ok || len(toks) == 0 {
		return 0, false
	}
	p := &arithParser{toks: toks}
	val, ok := p.parseExpr()
	if !ok || p.pos != len(p.toks) {
		return 0, false
	}
	return val, true
}

type arithToken struct {
	op  byte    // one of + - * / ( ) or 0 for a number
	num float64 // valid when op == 0
}

func lexArith(expr string) ([]arithToken, bool) {
	var toks []arithToken
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '(' || c == ')':
			toks = append(toks, arithToken{op: c})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			num, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, false
			}
			toks = append(toks, arithToken{num: num})
			i = j
		default:
			return nil, false
		}
	}
	return toks, true
}

// arithParser is a recursive-descent parser:
//
//	expr   := term (('+'|'-') term)*
//	term   := factor (('*'|'/') factor)*
//	factor := number | '-' factor | '(' expr ')'
type arithParser struct {
	toks []arithToken
	pos  int
}

func (p *arithParser) parseExpr() (float64, bool) {
	left, ok := p.parseTerm()
	if !ok {
		return 0, false
	}
	for p.pos < len(p.toks) {
		op := p.toks[p.pos].op
		if op != '+' && op != '-' {
			break
		}
		p.pos++
		right, ok := p.parseTerm()
		if !ok {
			return 0, false
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
	return left, true
}

func (p *arithParser) parseTerm() (float64, bool) {
	left, ok := p.parseFactor()
	if !ok {
		return 0, false
	}
	for p.pos < len(p.toks) {
		op := p.toks[p.pos].op
		if op != '*' && op != '/' {
			break
		}
		p.pos++
		right, ok := p.parseFactor()
		if !ok {
			return 0, false
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, false
			}
			left /= right
		}
	}
	return left, true
}

func (p *arithParser) parseFactor() (float64, bool) {
	if p.pos >= len(p.toks) {
		return 0, false
	}
	tok := p.toks[p.pos]
	switch tok.op {
	case 0:
		p.pos++
		return tok.num, true
	case '-':
		p.pos++
		val, ok := p.parseFactor()
		return -val, ok
	case '(':
		p.pos++
		val, ok := p.parseExpr()
		if !ok {
			return 0, false
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].op != ')' {
			return 0, false
		}
		p.pos++
		return val, true
	default:
		return 0, false
	}
}

// LooksArithmetic reports whether a substituted string plausibly is an
// arithmetic expression: only digits, operators, parentheses, dots, and
// spaces, with at least one digit. set_variable uses it to keep plain text
// like "hello" out of EvalArith entirely.
func LooksArithmetic(s string) bool {
	hasDigit := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '+' || c == '-' || c == '*' || c == '/' ||
			c == '.' || c == ' ' || c == '(' || c == ')':
		default:
			return false
		}
	}
	return hasDigit
}
