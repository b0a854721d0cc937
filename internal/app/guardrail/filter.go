package guardrail

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"practice_mentor/internal/common"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	RuleCodeTooLong      = "code_block_too_long"
	RuleCompleteFunction = "complete_function"
	RuleProtectedAnswer  = "protected_answer"
)

var (
	// A placeholder stands in for logic the learner still has to write. Only
	// whole statements, holes and marker comments count; strings never do.
	stringLiteral = regexp.MustCompile(`"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'|` + "`[^`\n]*`")
	lineComment   = regexp.MustCompile(`(//|/\*|(^|\s)#([^a-z]|$)).*$`)
	markerComment = regexp.MustCompile(`(?i)(\bTODO\b|\bFIXME\b|your (code|logic|solution)|fill (this |it )?in|implement (this|me|here)|\.\.\.|…)`)
	bareMarker    = regexp.MustCompile(`^(\.\.\.|…|pass|\?\?\?|_{3,}|raise NotImplementedError(\(.*\))?)$`)
	inlineHole    = regexp.MustCompile(`(_{3,}|\?\?\?|<\s*(your|fill|add|write|condition|expression)[^>]*>)`)

	definitionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(async\s+)?def\s+\w+\s*\(.*\)\s*(->\s*[^:]+)?:`),
		regexp.MustCompile(`(?m)\bfunction\b\s*\w*\s*\([^)]*\)\s*\{`),
		regexp.MustCompile(`(?m)^\s*(const|let|var)\s+\w+\s*=\s*(async\s*)?(\([^)]*\)|\w+)\s*=>`),
		regexp.MustCompile(`(?m)^\s*func\s+(\([^)]*\)\s*)?\w+\s*\(`),
	}
	// Java and C++ style signatures; the name group is checked against keywords.
	typedSignature = regexp.MustCompile(`(?m)^\s*(?:(?:public|private|protected|static|final|inline|virtual|synchronized)\s+)*[\w:<>\[\],]+[\s*&]+(\w+)\s*\([^)]*\)\s*(?:const\s*)?(?:throws\s+[\w., ]+)?\s*\{`)
	controlWords   = map[string]bool{"if": true, "for": true, "while": true, "switch": true, "catch": true, "return": true, "else": true}

	// Expression-bodied definitions are complete without a body statement.
	expressionDefinitions = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(const|let|var)\s+\w+\s*=\s*(async\s*)?(\([^)]*\)|\w+)\s*=>\s*[^\s{.]`),
		regexp.MustCompile(`(?m)^\s*\w+\s*=\s*lambda\b[^:\n]*:\s*[^\s.]`),
	}

	bodyStatement = regexp.MustCompile(`(?m)(^|[{:;])\s*(return\b|yield\b|print\s*\(|console\.log|System\.out\.|fmt\.Print|std::cout|cout\s*<<|printf\s*\()`)

	codeLikeLine = regexp.MustCompile(`^\s*(def |class |return\b|elif |else\s*:|import |from \w+ import|print\(|function\b|const |let |var |public |private |protected |static |#include|func |package |[{}]|for .*:\s*$|while .*:\s*$|if .*:\s*$|.*;\s*$|.*\)\s*\{\s*$)`)
	shortAnswerCue = `\b(answer|result|output|value|it)\s*(is|=|should be|equals|:)\s*`
	wordEdge       = `[^\p{L}\p{N}_]`
)

// Filter inspects a drafted reply before the learner sees it.
type Filter struct {
	md           goldmark.Markdown
	maxCodeLines int
}

func NewFilter(maxCodeLines int) *Filter {
	if maxCodeLines <= 0 {
		maxCodeLines = 8
	}
	return &Filter{md: goldmark.New(), maxCodeLines: maxCodeLines}
}

// Check returns nil when reply may be released, otherwise the rule it broke.
func (f *Filter) Check(reply string, sc ScopeContext) *common.GuardrailViolation {
	for _, block := range f.codeBlocks(reply) {
		if v := f.blockViolation(block); v != nil {
			return v
		}
	}
	for _, run := range looseCodeRuns(reply) {
		if v := f.blockViolation(run); v != nil {
			return v
		}
	}
	for _, answer := range sc.ProtectedAnswers {
		if containsAnswer(reply, answer) {
			return &common.GuardrailViolation{Rule: RuleProtectedAnswer}
		}
	}
	return nil
}

// codeBlocks returns the content of fenced and indented code blocks.
func (f *Filter) codeBlocks(reply string) []string {
	source := []byte(reply)
	doc := f.md.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, enter bool) (ast.WalkStatus, error) {
		if !enter {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindFencedCodeBlock && n.Kind() != ast.KindCodeBlock {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, buf.String())
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// looseCodeRuns finds code pasted as plain text outside any fence.
func looseCodeRuns(reply string) []string {
	var (
		runs    []string
		current []string
		inFence bool
	)
	flush := func() {
		if len(current) > 0 {
			runs = append(runs, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			flush()
			continue
		}
		switch {
		case inFence:
		case trimmed == "":
			// Blank lines may sit inside a function body.
		case codeLikeLine.MatchString(line):
			current = append(current, line)
		case len(current) > 0 && (strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")):
			current = append(current, line)
		default:
			flush()
		}
	}
	flush()
	return runs
}

// blockViolation judges code with its placeholder lines removed, so a marker
// never excuses the logic that surrounds it.
func (f *Filter) blockViolation(code string) *common.GuardrailViolation {
	code = stripPlaceholders(code)
	if n := nonBlankLines(code); n >= f.maxCodeLines {
		return &common.GuardrailViolation{Rule: RuleCodeTooLong, Detail: fmt.Sprintf("%d lines", n)}
	}
	if hasCompleteDefinition(code) {
		return &common.GuardrailViolation{Rule: RuleCompleteFunction}
	}
	return nil
}

func stripPlaceholders(code string) string {
	lines := strings.Split(code, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if !isPlaceholderLine(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// isPlaceholderLine reports whether line is a bare `...` or `pass`, holds a
// hole such as `___`, or is only a comment like "# your code here". Spread
// and variadic `...` inside real code are not placeholders.
func isPlaceholderLine(line string) bool {
	code := stringLiteral.ReplaceAllString(line, `""`)
	comment := ""
	if loc := lineComment.FindStringIndex(code); loc != nil {
		code, comment = code[:loc[0]], code[loc[0]:]
	}
	code = strings.TrimSuffix(strings.TrimSpace(code), ";")
	switch {
	case bareMarker.MatchString(code), inlineHole.MatchString(code):
		return true
	case code == "":
		return markerComment.MatchString(comment)
	}
	return false
}

func hasCompleteDefinition(code string) bool {
	for _, p := range expressionDefinitions {
		if p.MatchString(code) {
			return true
		}
	}
	if !bodyStatement.MatchString(code) {
		return false
	}
	for _, p := range definitionPatterns {
		if p.MatchString(code) {
			return true
		}
	}
	for _, m := range typedSignature.FindAllStringSubmatch(code, -1) {
		if !controlWords[m[1]] {
			return true
		}
	}
	return false
}

func nonBlankLines(code string) int {
	n := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// containsAnswer matches whole words, ignoring case and spacing. Very short
// answers only count when stated as an answer, so "step 2" does not trip "2".
func containsAnswer(reply, answer string) bool {
	answer = strings.Join(strings.Fields(strings.ToLower(answer)), " ")
	answer = strings.TrimRight(answer, ".!")
	if answer == "" {
		return false
	}
	reply = strings.Join(strings.Fields(strings.ToLower(reply)), " ")

	quoted := regexp.QuoteMeta(answer)
	pattern := `(^|` + wordEdge + `)` + quoted + `($|` + wordEdge + `)`
	if len([]rune(answer)) <= 2 {
		pattern = shortAnswerCue + quoted + `($|` + wordEdge + `)`
	}
	return regexp.MustCompile(pattern).MatchString(reply)
}
