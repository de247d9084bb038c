package rule

import (
	"fmt"
	"os"

	"github.com/hbollon/go-edlib"
	"gopkg.in/yaml.v3"

	"github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/types"
)

// Operator keys accepted inside a rule formula. Kept as a list so unknown
// keys can be answered with a nearest-key suggestion.
var formulaKeys = []string{
	"pattern",
	"patterns",
	"pattern-either",
	"pattern-inside",
	"pattern-not",
	"pattern-not-inside",
	"pattern-regex",
	"pattern-not-regex",
	"metavariable-regex",
	"metavariable-comparison",
	"metavariable-pattern",
	"metavariable-analysis",
	"focus-metavariable",
}

var ruleKeys = []string{
	"id", "message", "severity", "languages", "metadata",
	"pattern", "patterns", "pattern-either", "pattern-regex",
}

// ParseFile reads a YAML rule file and returns its rules. A failure in one
// rule aborts the whole file; rule files are configuration and should not
// half-load.
func ParseFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.KindRuleParse, err).WithPath(path)
	}
	rules, err := Parse(data)
	if err != nil {
		if re, ok := err.(*errors.RuleError); ok {
			return nil, re.WithPath(path)
		}
		return nil, err
	}
	return rules, nil
}

// Parse parses YAML rule-file content.
func Parse(data []byte) ([]*Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(errors.KindRuleParse, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.Newf(errors.KindRuleParse, "rule file must be a mapping with a `rules` key")
	}

	var rulesNode *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "rules" {
			rulesNode = root.Content[i+1]
		}
	}
	if rulesNode == nil {
		return nil, errors.Newf(errors.KindRuleParse, "rule file has no `rules` key")
	}
	if rulesNode.Kind != yaml.SequenceNode {
		return nil, errors.Newf(errors.KindRuleParse, "`rules` must be a sequence")
	}

	var rules []*Rule
	for _, ruleNode := range rulesNode.Content {
		r, err := parseRule(ruleNode)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// builder assigns dense pattern ids while a rule's formulas are assembled.
// One builder per rule: ids are unique across the main formula and every
// nested metavariable-pattern formula.
type builder struct {
	next     types.PatternID
	patterns map[types.PatternID]*Pattern
}

func (b *builder) leaf(source string, kind PatternKind, inside bool) *Leaf {
	id := b.next
	b.next++
	b.patterns[id] = &Pattern{ID: id, Kind: kind, Source: source}
	return &Leaf{ID: id, Inside: inside}
}

func parseRule(node *yaml.Node) (*Rule, error) {
	if node.Kind != yaml.MappingNode {
		return nil, parseErrAt(node, "each rule must be a mapping")
	}

	b := &builder{patterns: make(map[types.PatternID]*Pattern)}
	r := &Rule{Severity: types.SeverityInfo, Patterns: b.patterns}

	var formulaEntries []*yaml.Node // alternating key/value, formula keys only

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "id":
			r.ID = value.Value
		case "message":
			r.Message = value.Value
		case "severity":
			sev, ok := types.ParseSeverity(value.Value)
			if !ok {
				return nil, parseErrAt(value, "unknown severity %q", value.Value)
			}
			r.Severity = sev
		case "languages":
			langs, err := parseLanguages(value)
			if err != nil {
				return nil, err
			}
			r.Languages = langs
		case "metadata":
			meta := map[string]string{}
			if err := value.Decode(&meta); err != nil {
				return nil, parseErrAt(value, "invalid metadata: %v", err)
			}
			r.Metadata = meta
		case "pattern", "patterns", "pattern-either", "pattern-regex":
			formulaEntries = append(formulaEntries, key, value)
		default:
			return nil, unknownKeyErr(key, ruleKeys)
		}
	}

	if r.ID == "" {
		return nil, parseErrAt(node, "rule has no id")
	}
	if len(r.Languages) == 0 {
		return nil, errors.Newf(errors.KindRuleParse, "rule has no languages").WithRule(r.ID)
	}
	if len(formulaEntries) != 2 {
		return nil, errors.Newf(errors.KindRuleParse,
			"rule needs exactly one of pattern, patterns, pattern-either, pattern-regex").WithRule(r.ID)
	}

	f, err := parseOperator(b, formulaEntries[0], formulaEntries[1])
	if err != nil {
		if re, ok := err.(*errors.RuleError); ok {
			return nil, re.WithRule(r.ID)
		}
		return nil, err
	}
	r.Formula = fold(f)
	return r, nil
}

func parseLanguages(node *yaml.Node) ([]types.Language, error) {
	var names []string
	switch node.Kind {
	case yaml.ScalarNode:
		names = []string{node.Value}
	case yaml.SequenceNode:
		if err := node.Decode(&names); err != nil {
			return nil, parseErrAt(node, "invalid languages: %v", err)
		}
	default:
		return nil, parseErrAt(node, "languages must be a string or a list")
	}

	langs := make([]types.Language, 0, len(names))
	for _, name := range names {
		lang, ok := types.ParseLanguage(name)
		if !ok {
			msg := fmt.Sprintf("unknown language %q", name)
			if hint := suggest(name, types.LanguageNames()); hint != "" {
				msg += fmt.Sprintf(" (did you mean %q?)", hint)
			}
			return nil, errors.Newf(errors.KindRuleParse, "%s", msg)
		}
		langs = append(langs, lang)
	}
	return langs, nil
}

// parseOperator parses one formula operator key/value pair into a Formula.
// Metavariable conditions and focus are not formulas; they are returned
// through parseAndList instead, so hitting one here is a placement error.
func parseOperator(b *builder, key, value *yaml.Node) (Formula, error) {
	switch key.Value {
	case "pattern":
		return b.leaf(value.Value, KindAST, false), nil
	case "pattern-inside":
		return b.leaf(value.Value, KindAST, true), nil
	case "pattern-not":
		return &Not{Child: b.leaf(value.Value, KindAST, false)}, nil
	case "pattern-not-inside":
		return &Not{Child: b.leaf(value.Value, KindAST, true)}, nil
	case "pattern-regex":
		return b.leaf(value.Value, KindRegex, false), nil
	case "pattern-not-regex":
		return &Not{Child: b.leaf(value.Value, KindRegex, false)}, nil
	case "pattern-either":
		if value.Kind != yaml.SequenceNode {
			return nil, parseErrAt(value, "pattern-either must be a list")
		}
		or := &Or{}
		for _, item := range value.Content {
			child, err := parseFormulaItem(b, item)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, parseErrAt(item, "pattern-either entries must be patterns, not conditions")
			}
			or.Children = append(or.Children, child)
		}
		if len(or.Children) == 0 {
			return nil, parseErrAt(value, "pattern-either is empty")
		}
		return or, nil
	case "patterns":
		return parseAndList(b, value)
	}
	return nil, unknownKeyErr(key, formulaKeys)
}

// parseFormulaItem parses one entry of a patterns/pattern-either list.
// Returns (nil, nil) for entries that contribute conditions or focus
// rather than a sub-formula; parseAndList picks those up itself.
func parseFormulaItem(b *builder, item *yaml.Node) (Formula, error) {
	key, value, err := singleKey(item)
	if err != nil {
		return nil, err
	}
	switch key.Value {
	case "metavariable-regex", "metavariable-comparison",
		"metavariable-pattern", "metavariable-analysis", "focus-metavariable":
		return nil, nil
	}
	return parseOperator(b, key, value)
}

// parseAndList parses a `patterns:` sequence into an And node, folding
// pattern-not entries into the negative list and collecting conditions and
// focus variables in declaration order.
func parseAndList(b *builder, node *yaml.Node) (Formula, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, parseErrAt(node, "patterns must be a list")
	}

	and := &And{}
	for _, item := range node.Content {
		key, value, err := singleKey(item)
		if err != nil {
			return nil, err
		}
		switch key.Value {
		case "metavariable-regex":
			cond, err := parseRegexCondition(value)
			if err != nil {
				return nil, err
			}
			and.Conditions = append(and.Conditions, cond)
		case "metavariable-comparison":
			cond, err := parseComparisonCondition(value)
			if err != nil {
				return nil, err
			}
			and.Conditions = append(and.Conditions, cond)
		case "metavariable-pattern":
			cond, err := parsePatternCondition(b, value)
			if err != nil {
				return nil, err
			}
			and.Conditions = append(and.Conditions, cond)
		case "metavariable-analysis":
			cond, err := parseAnalyzerCondition(value)
			if err != nil {
				return nil, err
			}
			and.Conditions = append(and.Conditions, cond)
		case "focus-metavariable":
			switch value.Kind {
			case yaml.ScalarNode:
				and.Focus = append(and.Focus, value.Value)
			case yaml.SequenceNode:
				var vars []string
				if err := value.Decode(&vars); err != nil {
					return nil, parseErrAt(value, "invalid focus-metavariable: %v", err)
				}
				and.Focus = append(and.Focus, vars...)
			default:
				return nil, parseErrAt(value, "focus-metavariable must be a string or a list")
			}
		default:
			f, err := parseOperator(b, key, value)
			if err != nil {
				return nil, err
			}
			if not, ok := f.(*Not); ok {
				and.Negatives = append(and.Negatives, not.Child)
			} else {
				and.Positives = append(and.Positives, f)
			}
		}
	}

	// A lone bare pattern with companions stripped away is eligible for
	// search-space pruning when the And is evaluated under a context.
	if len(and.Positives) == 1 {
		if leaf, ok := and.Positives[0].(*Leaf); ok && !leaf.Inside {
			and.Selector = leaf
		}
	}
	return and, nil
}

func parseRegexCondition(node *yaml.Node) (Condition, error) {
	fields, err := mappingFields(node, "metavariable", "regex")
	if err != nil {
		return nil, err
	}
	if fields["metavariable"] == nil || fields["regex"] == nil {
		return nil, parseErrAt(node, "metavariable-regex needs metavariable and regex")
	}
	return &RegexCondition{
		Metavar: fields["metavariable"].Value,
		Pattern: fields["regex"].Value,
	}, nil
}

func parseComparisonCondition(node *yaml.Node) (Condition, error) {
	fields, err := mappingFields(node, "metavariable", "comparison")
	if err != nil {
		return nil, err
	}
	if fields["comparison"] == nil {
		return nil, parseErrAt(node, "metavariable-comparison needs a comparison expression")
	}
	return &ComparisonCondition{Expr: fields["comparison"].Value}, nil
}

func parseAnalyzerCondition(node *yaml.Node) (Condition, error) {
	fields, err := mappingFields(node, "metavariable", "analyzer")
	if err != nil {
		return nil, err
	}
	if fields["metavariable"] == nil || fields["analyzer"] == nil {
		return nil, parseErrAt(node, "metavariable-analysis needs metavariable and analyzer")
	}
	switch name := fields["analyzer"].Value; name {
	case string(AnalyzerEntropy), string(AnalyzerReDoS):
		return &AnalyzerCondition{
			Metavar:  fields["metavariable"].Value,
			Analyzer: Analyzer(name),
		}, nil
	default:
		return nil, parseErrAt(fields["analyzer"], "unknown analyzer %q (supported: entropy, redos)", name)
	}
}

func parsePatternCondition(b *builder, node *yaml.Node) (Condition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, parseErrAt(node, "metavariable-pattern must be a mapping")
	}
	cond := &PatternCondition{}
	var formulaKey, formulaValue *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "metavariable":
			cond.Metavar = value.Value
		case "language":
			lang, ok := types.ParseLanguage(value.Value)
			if !ok {
				return nil, parseErrAt(value, "unknown language %q", value.Value)
			}
			cond.Language = lang
		case "pattern", "patterns", "pattern-either", "pattern-regex":
			formulaKey, formulaValue = key, value
		default:
			return nil, unknownKeyErr(key, []string{"metavariable", "language", "pattern", "patterns", "pattern-either", "pattern-regex"})
		}
	}
	if cond.Metavar == "" {
		return nil, parseErrAt(node, "metavariable-pattern needs a metavariable")
	}
	if formulaKey == nil {
		return nil, parseErrAt(node, "metavariable-pattern needs a pattern")
	}
	f, err := parseOperator(b, formulaKey, formulaValue)
	if err != nil {
		return nil, err
	}
	cond.Formula = fold(f)
	return cond, nil
}

// fold normalizes a freshly built formula: a top-level Not is wrapped in
// an And with an empty positive list so the evaluator sees the shape it
// expects (the empty-And error surfaces there with full context).
func fold(f Formula) Formula {
	if not, ok := f.(*Not); ok {
		return &And{Negatives: []Formula{not.Child}}
	}
	return f
}

func singleKey(item *yaml.Node) (key, value *yaml.Node, err error) {
	if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
		return nil, nil, parseErrAt(item, "each patterns entry must have exactly one operator key")
	}
	return item.Content[0], item.Content[1], nil
}

func mappingFields(node *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, parseErrAt(node, "expected a mapping")
	}
	ok := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		ok[name] = true
	}
	fields := map[string]*yaml.Node{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !ok[key.Value] {
			return nil, unknownKeyErr(key, allowed)
		}
		fields[key.Value] = node.Content[i+1]
	}
	return fields, nil
}

func parseErrAt(node *yaml.Node, format string, args ...interface{}) error {
	err := errors.Newf(errors.KindRuleParse, format, args...)
	if node != nil && node.Line > 0 {
		err.Underlying = fmt.Errorf("line %d: %w", node.Line, err.Underlying)
	}
	return err
}

func unknownKeyErr(key *yaml.Node, known []string) error {
	msg := fmt.Sprintf("unknown key %q", key.Value)
	if hint := suggest(key.Value, known); hint != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", hint)
	}
	return parseErrAt(key, "%s", msg)
}

// suggest returns the closest known name when it is similar enough to be a
// plausible typo.
func suggest(input string, candidates []string) string {
	best := ""
	var bestScore float32
	for _, cand := range candidates {
		score, err := edlib.StringsSimilarity(input, cand, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	if bestScore >= 0.8 {
		return best
	}
	return ""
}
