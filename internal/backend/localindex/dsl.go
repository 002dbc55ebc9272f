package localindex

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/idxstore/internal/backend"
)

// translateQuery converts the supported subset of the Elasticsearch query
// DSL into a bleve query: bool, query_string, match, term, ids, match_all
// and match_none. A body without "query" matches everything.
func translateQuery(body backend.Query) (query.Query, error) {
	raw, ok := body["query"]
	if !ok {
		return bleve.NewMatchAllQuery(), nil
	}
	clause, ok := asObject(raw)
	if !ok {
		return nil, fmt.Errorf("[query] must be an object")
	}
	return translateClause(clause)
}

func translateClause(clause map[string]any) (query.Query, error) {
	if len(clause) != 1 {
		return nil, fmt.Errorf("query clause must have exactly one key, got %d", len(clause))
	}

	for kind, rawBody := range clause {
		switch kind {
		case "match_all":
			return bleve.NewMatchAllQuery(), nil
		case "match_none":
			return bleve.NewMatchNoneQuery(), nil
		case "bool":
			body, ok := asObject(rawBody)
			if !ok {
				return nil, fmt.Errorf("[bool] must be an object")
			}
			return translateBool(body)
		case "query_string":
			body, ok := asObject(rawBody)
			if !ok {
				return nil, fmt.Errorf("[query_string] must be an object")
			}
			text, ok := body["query"].(string)
			if !ok {
				return nil, fmt.Errorf("[query_string] requires a string [query]")
			}
			return bleve.NewQueryStringQuery(rewriteQueryString(text)), nil
		case "match":
			field, text, err := fieldValue(kind, rawBody, "query")
			if err != nil {
				return nil, err
			}
			q := bleve.NewMatchQuery(fmt.Sprint(text))
			q.SetField(field)
			return q, nil
		case "term":
			field, value, err := fieldValue(kind, rawBody, "value")
			if err != nil {
				return nil, err
			}
			q := bleve.NewTermQuery(fmt.Sprint(value))
			q.SetField(field)
			return q, nil
		case "ids":
			body, ok := asObject(rawBody)
			if !ok {
				return nil, fmt.Errorf("[ids] must be an object")
			}
			values, _ := body["values"].([]any)
			ids := make([]string, 0, len(values))
			for _, v := range values {
				ids = append(ids, fmt.Sprint(v))
			}
			return bleve.NewDocIDQuery(ids), nil
		default:
			return nil, fmt.Errorf("unknown query [%s]", kind)
		}
	}
	return nil, nil // unreachable
}

func translateBool(body map[string]any) (query.Query, error) {
	var must, should, mustNot []query.Query

	for occur, rawClauses := range body {
		clauses, err := clauseList(occur, rawClauses)
		if err != nil {
			return nil, err
		}
		for _, c := range clauses {
			q, err := translateClause(c)
			if err != nil {
				return nil, err
			}
			switch occur {
			case "must", "filter":
				must = append(must, q)
			case "should":
				should = append(should, q)
			case "must_not":
				mustNot = append(mustNot, q)
			}
		}
	}

	if len(must) == 0 && len(should) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}
	return query.NewBooleanQuery(must, should, mustNot), nil
}

// clauseList accepts a single clause object or a list of them.
func clauseList(occur string, raw any) ([]map[string]any, error) {
	switch occur {
	case "must", "filter", "should", "must_not":
	default:
		return nil, fmt.Errorf("[bool] query does not support [%s]", occur)
	}

	if obj, ok := asObject(raw); ok {
		return []map[string]any{obj}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]map[string]any); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("[bool][%s] must be an object or an array", occur)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		obj, ok := asObject(item)
		if !ok {
			return nil, fmt.Errorf("[bool][%s] entries must be objects", occur)
		}
		out = append(out, obj)
	}
	return out, nil
}

// fieldValue reads {"field": value} or {"field": {key: value}}.
func fieldValue(kind string, raw any, key string) (string, any, error) {
	body, ok := asObject(raw)
	if !ok || len(body) != 1 {
		return "", nil, fmt.Errorf("[%s] must name exactly one field", kind)
	}
	for field, v := range body {
		if inner, ok := asObject(v); ok {
			val, ok := inner[key]
			if !ok {
				return "", nil, fmt.Errorf("[%s][%s] requires [%s]", kind, field, key)
			}
			return field, val, nil
		}
		return field, v, nil
	}
	return "", nil, nil // unreachable
}

// rewriteQueryString turns Lucene boolean operators (AND, OR, NOT, &&, ||,
// !) into bleve's +/- prefixes. Terms and phrases pass through unchanged;
// anything bleve cannot parse fails at search time.
func rewriteQueryString(s string) string {
	type term struct {
		prefix string
		text   string
	}

	var (
		terms       []term
		requireNext bool
		negateNext  bool
	)
	for _, tok := range splitQueryTokens(s) {
		switch tok {
		case "AND", "&&":
			if n := len(terms); n > 0 && terms[n-1].prefix == "" {
				terms[n-1].prefix = "+"
			}
			requireNext = true
		case "OR", "||":
		case "NOT", "!":
			negateNext = true
		default:
			t := term{text: tok}
			if tok[0] == '+' || tok[0] == '-' {
				t.prefix, t.text = tok[:1], tok[1:]
			}
			if t.text == "" {
				continue
			}
			if negateNext {
				t.prefix = "-"
			} else if requireNext && t.prefix == "" {
				t.prefix = "+"
			}
			requireNext, negateNext = false, false
			terms = append(terms, t)
		}
	}

	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.prefix + t.text
	}
	return strings.Join(parts, " ")
}

// splitQueryTokens splits on whitespace outside double quotes.
func splitQueryTokens(s string) []string {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case unicode.IsSpace(r) && !quoted:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()
	return tokens
}
