package envelope

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	headerRe = regexp.MustCompile(`^(graph|flowchart)(\s+(TB|TD|BT|RL|LR))?$`)
	nodeIDRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	plainRe  = regexp.MustCompile(`^[A-Za-z0-9 _\-]*$`)
	subIDRe  = regexp.MustCompile(`^([A-Za-z0-9_]+)\s*\[`)
)

// shapes lists node shape delimiters, longest opener first.
var shapes = []struct{ open, close string }{
	{"[[", "]]"},
	{"[(", ")]"},
	{"([", "])"},
	{"((", "))"},
	{"{{", "}}"},
	{"[/", "/]"},
	{"[\\", "\\]"},
	{"[", "]"},
	{"(", ")"},
	{"{", "}"},
}

type span struct{ start, end int }

type edit struct {
	span
	text string
}

// RepairDiagram normalizes a flowchart so that node identifiers are ASCII
// and every label that is not plain ASCII text is double-quoted. A diagram
// that already satisfies the rules is returned unchanged.
func RepairDiagram(src string) (string, error) {
	stmts := splitStatements(src)
	if len(stmts) == 0 {
		return "", errors.New("diagram is empty")
	}
	header := src[stmts[0].start:stmts[0].end]
	if !headerRe.MatchString(header) {
		return "", fmt.Errorf("unsupported diagram header %q", header)
	}

	var edits []edit
	subgraphs := 0
	for _, st := range stmts[1:] {
		text := src[st.start:st.end]
		if text == "end" {
			continue
		}
		switch strings.Fields(text)[0] {
		case "classDef", "class", "style", "linkStyle", "click", "direction":
			continue
		case "subgraph":
			subgraphs++
			es, err := repairSubgraph(text, st.start, subgraphs)
			if err != nil {
				return "", err
			}
			edits = append(edits, es...)
			continue
		}
		es, err := repairStatement(text, st.start)
		if err != nil {
			return "", err
		}
		edits = append(edits, es...)
	}

	out := applyEdits(src, edits)
	if err := checkASCII(out); err != nil {
		return "", err
	}
	return out, nil
}

// splitStatements returns the trimmed, non-empty statements of src.
// Statements end at a newline or a semicolon outside quotes and brackets.
// Comment lines are skipped.
func splitStatements(src string) []span {
	var out []span
	depth := 0
	inQuote := false
	start := 0

	flush := func(end int) {
		s, e := trimSpan(src, start, end)
		if s < e && !strings.HasPrefix(src[s:e], "%%") {
			out = append(out, span{s, e})
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '[' || c == '(' || c == '{':
			depth++
		case (c == ']' || c == ')' || c == '}') && depth > 0:
			depth--
		case c == '\n':
			flush(i)
			start = i + 1
			depth = 0
		case c == ';' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(src))
	return out
}

func trimSpan(src string, start, end int) (int, int) {
	for start < end && isSpace(src[start]) {
		start++
	}
	for end > start && isSpace(src[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func repairSubgraph(text string, base, n int) ([]edit, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(text, "subgraph"))
	if rest == "" || plainRe.MatchString(rest) || isQuoted(rest) {
		return nil, nil
	}
	restStart := base + strings.Index(text, rest)

	if m := subIDRe.FindStringSubmatchIndex(rest); m != nil && strings.HasSuffix(rest, "]") {
		open := m[1]
		label := rest[open : len(rest)-1]
		if isQuoted(strings.TrimSpace(label)) || plainRe.MatchString(label) {
			return nil, nil
		}
		return []edit{{span{restStart + open, restStart + len(rest) - 1}, quote(label)}}, nil
	}
	return []edit{{span{restStart, restStart + len(rest)}, fmt.Sprintf("sg%d [%s]", n, quote(rest))}}, nil
}

// repairStatement handles node declarations and edge chains such as
// `A[label] -->|text| B & C`.
func repairStatement(text string, base int) ([]edit, error) {
	var edits []edit
	depth := 0
	inQuote := false
	segStart := 0

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
			i++
			continue
		case c == '"':
			inQuote = true
			i++
			continue
		case c == '[' || c == '(' || c == '{':
			depth++
			i++
			continue
		case c == ']' || c == ')' || c == '}':
			if depth > 0 {
				depth--
			}
			i++
			continue
		}
		if depth > 0 || !isArrowChar(c) {
			i++
			continue
		}

		j := arrowEnd(text, i)
		run := text[i:j]
		if !isArrow(run) {
			i = j
			continue
		}
		j = headEnd(text, j)

		es, err := repairNodes(text[segStart:i], base+segStart)
		if err != nil {
			return nil, err
		}
		edits = append(edits, es...)

		next, es, err := repairEdgeLabel(text, base, i, j)
		if err != nil {
			return nil, err
		}
		edits = append(edits, es...)
		segStart = next
		i = next
	}

	if inQuote {
		return nil, errors.New("unterminated quote in diagram")
	}
	es, err := repairNodes(text[segStart:], base+segStart)
	if err != nil {
		return nil, err
	}
	return append(edits, es...), nil
}

func isArrowChar(c byte) bool {
	return c == '-' || c == '=' || c == '.' || c == '<' || c == '>'
}

func arrowEnd(text string, i int) int {
	j := i
	for j < len(text) && isArrowChar(text[j]) {
		j++
	}
	return j
}

// headEnd extends an arrow ending at j over a circle or cross head, as in
// `A --o B` or `A ==x B`. The head must be followed by a space, a pipe or
// the end of the statement so node ids starting with o or x are left alone.
func headEnd(text string, j int) int {
	if j == 0 || j >= len(text) || (text[j-1] != '-' && text[j-1] != '=') {
		return j
	}
	if text[j] != 'o' && text[j] != 'x' {
		return j
	}
	if j+1 < len(text) && text[j+1] != ' ' && text[j+1] != '|' {
		return j
	}
	return j + 1
}

func isArrow(run string) bool {
	switch run {
	case "-.", ".-", ".->":
		return true
	}
	return strings.Count(run, "-")+strings.Count(run, "=") >= 2
}

// repairEdgeLabel inspects the text following an arrow at text[i:j] and
// returns the offset where the next node segment starts.
func repairEdgeLabel(text string, base, i, j int) (int, []edit, error) {
	run := text[i:j]

	// `A -- label --> B` form: find the closing arrow.
	if run == "--" || run == "==" || run == "-." {
		for k := j; k < len(text); k++ {
			if !isArrowChar(text[k]) {
				continue
			}
			m := arrowEnd(text, k)
			if !isArrow(text[k:m]) {
				k = m - 1
				continue
			}
			m = headEnd(text, m)
			closer := text[k:m]
			label := strings.TrimSpace(text[j:k])
			if plainRe.MatchString(label) || isQuoted(label) {
				return m, nil, nil
			}
			return m, []edit{{span{base + i, base + m}, closer + "|" + quote(label) + "|"}}, nil
		}
		return 0, nil, fmt.Errorf("unterminated edge label in %q", text)
	}

	p := j
	for p < len(text) && text[p] == ' ' {
		p++
	}
	if p >= len(text) || text[p] != '|' {
		return j, nil, nil
	}
	q := strings.IndexByte(text[p+1:], '|')
	if q < 0 {
		return 0, nil, fmt.Errorf("unterminated edge label in %q", text)
	}
	q += p + 1
	label := text[p+1 : q]
	if plainRe.MatchString(label) || isQuoted(strings.TrimSpace(label)) {
		return q + 1, nil, nil
	}
	return q + 1, []edit{{span{base + p + 1, base + q}, quote(label)}}, nil
}

// repairNodes handles one side of an edge, which may chain nodes with '&'.
func repairNodes(seg string, base int) ([]edit, error) {
	var edits []edit
	for _, piece := range splitAmpersand(seg) {
		s, e := trimSpan(seg, piece.start, piece.end)
		if s == e {
			return nil, fmt.Errorf("missing node in %q", seg)
		}
		es, err := repairNode(seg[s:e], base+s)
		if err != nil {
			return nil, err
		}
		edits = append(edits, es...)
	}
	return edits, nil
}

func splitAmpersand(seg string) []span {
	var out []span
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case c == '"':
			inQuote = true
		case c == '[' || c == '(' || c == '{':
			depth++
		case (c == ']' || c == ')' || c == '}') && depth > 0:
			depth--
		case c == '&' && depth == 0:
			out = append(out, span{start, i})
			start = i + 1
		}
	}
	return append(out, span{start, len(seg)})
}

func repairNode(node string, base int) ([]edit, error) {
	if k := strings.Index(node, ":::"); k >= 0 {
		node = node[:k]
	}
	idEnd := strings.IndexAny(node, "[({")
	if idEnd < 0 {
		idEnd = len(node)
	}
	id := strings.TrimSpace(node[:idEnd])
	if !nodeIDRe.MatchString(id) {
		return nil, fmt.Errorf("node identifier %q must be ASCII alphanumeric", id)
	}
	if id == "end" {
		return nil, errors.New(`node identifier "end" is reserved`)
	}

	shape := node[idEnd:]
	if shape == "" {
		return nil, nil
	}
	for _, sh := range shapes {
		if !strings.HasPrefix(shape, sh.open) {
			continue
		}
		if !strings.HasSuffix(shape, sh.close) || len(shape) < len(sh.open)+len(sh.close) {
			return nil, fmt.Errorf("malformed shape for node %q", id)
		}
		label := shape[len(sh.open) : len(shape)-len(sh.close)]
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			return nil, fmt.Errorf("empty label for node %q", id)
		}
		if isQuoted(trimmed) || plainRe.MatchString(label) {
			return nil, nil
		}
		start := base + idEnd + len(sh.open)
		return []edit{{span{start, start + len(label)}, quote(trimmed)}}, nil
	}
	return nil, fmt.Errorf("malformed shape for node %q", id)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func quote(label string) string {
	return `"` + strings.ReplaceAll(strings.TrimSpace(label), `"`, "#quot;") + `"`
}

func applyEdits(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(src[last:e.start])
		b.WriteString(e.text)
		last = e.end
	}
	b.WriteString(src[last:])
	return b.String()
}

// checkASCII rejects any non-ASCII byte outside quoted labels and comments.
func checkASCII(src string) error {
	for _, line := range strings.Split(src, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "%%") {
			continue
		}
		inQuote := false
		for _, r := range line {
			if r == '"' {
				inQuote = !inQuote
				continue
			}
			if !inQuote && r > 0x7f {
				return fmt.Errorf("character %q outside a quoted label", r)
			}
		}
	}
	return nil
}
