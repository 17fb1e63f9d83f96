package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/schema"
)

// CalculatorTool evaluates arithmetic expressions deterministically so the
// agents never do mental math. It supports + - * / % ^, parentheses, and a
// small set of functions (abs, sqrt, min, max, pow, round, floor, ceil, log,
// log10).
type CalculatorTool struct{}

// calculatorInput is the JSON-serialisable input schema for CalculatorTool.
type calculatorInput struct {
	// Expression is the arithmetic expression to evaluate.
	Expression string `json:"expression"`
}

// NewCalculatorTool constructs a CalculatorTool.
func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

// Name returns the tool name registered with the agents.
func (t *CalculatorTool) Name() string { return "calculator" }

// Description returns the LLM-facing description of this tool.
func (t *CalculatorTool) Description() string {
	return "Evaluates an arithmetic expression exactly. " +
		"Supports + - * / % ^, parentheses, and functions: abs, sqrt, min, max, pow, round, floor, ceil, log, log10. " +
		"Always use this for margin, markup, and price computations instead of estimating."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CalculatorTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expression": {
				Type:     schema.String,
				Desc:     "Arithmetic expression, e.g. '(29.99 - 12.50) / 29.99 * 100'.",
				Required: true,
			},
		}),
	}, nil
}

// Execute parses and evaluates the expression.
func (t *CalculatorTool) Execute(ctx context.Context, argumentsInJSON string) *Result {
	var input calculatorInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("calculator: invalid input: %v", err)
	}
	expr := strings.TrimSpace(input.Expression)
	if expr == "" {
		return errorResult("calculator: expression is required")
	}

	value, err := evalExpression(expr)
	if err != nil {
		return errorResult("calculator: %v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errorResult("calculator: expression %q has no finite result", expr)
	}

	return &Result{
		Answer:     fmt.Sprintf("%s = %s", expr, strconv.FormatFloat(value, 'f', -1, 64)),
		Confidence: 1.0,
		Metadata:   map[string]any{"value": value},
	}
}

// exprParser is a recursive-descent parser over a token-free input string.
// Grammar (lowest to highest precedence):
//
//	expr    = term   (('+' | '-') term)*
//	term    = unary  (('*' | '/' | '%') unary)*
//	unary   = '-' unary | power
//	power   = primary ('^' unary)?          right-associative
//	primary = number | func '(' args ')' | '(' expr ')'
type exprParser struct {
	input string
	pos   int
}

// evalExpression evaluates an arithmetic expression string.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil

	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()

	case unicode.IsLetter(rune(c)):
		return p.parseFunc()

	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			p.pos++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) parseFunc() (float64, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			p.pos++
			continue
		}
		break
	}
	name := strings.ToLower(p.input[start:p.pos])

	if p.peek() != '(' {
		return 0, fmt.Errorf("unknown identifier %q", name)
	}
	p.pos++

	var args []float64
	if p.peek() != ')' {
		for {
			v, err := p.parseExpr()
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.peek() != ',' {
				break
			}
			p.pos++
		}
	}
	if p.peek() != ')' {
		return 0, fmt.Errorf("missing closing parenthesis after %s()", name)
	}
	p.pos++

	return applyFunc(name, args)
}

func applyFunc(name string, args []float64) (float64, error) {
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s() expects %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}

	switch name {
	case "abs":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Abs(args[0]), nil
	case "sqrt":
		if err := arity(1); err != nil {
			return 0, err
		}
		if args[0] < 0 {
			return 0, fmt.Errorf("sqrt() of negative number")
		}
		return math.Sqrt(args[0]), nil
	case "min":
		if err := arity(2); err != nil {
			return 0, err
		}
		return math.Min(args[0], args[1]), nil
	case "max":
		if err := arity(2); err != nil {
			return 0, err
		}
		return math.Max(args[0], args[1]), nil
	case "pow":
		if err := arity(2); err != nil {
			return 0, err
		}
		return math.Pow(args[0], args[1]), nil
	case "round":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Round(args[0]), nil
	case "floor":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Floor(args[0]), nil
	case "ceil":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Ceil(args[0]), nil
	case "log":
		if err := arity(1); err != nil {
			return 0, err
		}
		if args[0] <= 0 {
			return 0, fmt.Errorf("log() of non-positive number")
		}
		return math.Log(args[0]), nil
	case "log10":
		if err := arity(1); err != nil {
			return 0, err
		}
		if args[0] <= 0 {
			return 0, fmt.Errorf("log10() of non-positive number")
		}
		return math.Log10(args[0]), nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}
