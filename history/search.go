package history

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`[^\s"']+|"([^"]*)"|'([^']*)'`)

type term struct {
	who  string // "" matches any speaker
	text string
}

// parseQuery splits a search query into terms.
// Supports: "phrase search", you:term, agent:term
func parseQuery(input string) []term {
	var terms []term

	for _, m := range tokenRe.FindAllStringSubmatch(strings.TrimSpace(input), -1) {
		token := m[0]

		if strings.HasPrefix(token, "\"") || strings.HasPrefix(token, "'") {
			phrase := m[1] + m[2]
			if phrase != "" {
				terms = append(terms, term{text: strings.ToLower(phrase)})
			}
			continue
		}

		lower := strings.ToLower(token)
		switch {
		case strings.HasPrefix(lower, "you:") || strings.HasPrefix(lower, "user:"):
			terms = append(terms, term{who: "you", text: lower[strings.Index(lower, ":")+1:]})
		case strings.HasPrefix(lower, "agent:") || strings.HasPrefix(lower, "ai:"):
			terms = append(terms, term{who: "agent", text: lower[strings.Index(lower, ":")+1:]})
		default:
			terms = append(terms, term{text: lower})
		}
	}

	return terms
}

// Filter returns the entries matching every term of query, in stored order.
// An empty query matches everything.
func Filter(entries []Entry, query string) []Entry {
	terms := parseQuery(query)
	if len(terms) == 0 {
		return entries
	}

	var out []Entry
	for _, e := range entries {
		if matchAll(e, terms) {
			out = append(out, e)
		}
	}
	return out
}

func matchAll(e Entry, terms []term) bool {
	who := strings.ToLower(e.Who)
	text := strings.ToLower(e.Text)
	for _, t := range terms {
		if t.who != "" && t.who != who {
			return false
		}
		if t.text != "" && !strings.Contains(text, t.text) {
			return false
		}
	}
	return true
}
