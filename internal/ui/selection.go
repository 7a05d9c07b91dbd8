package ui

import (
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"customerterm/internal/customers"
)

type listOption struct {
	id       string
	synonyms []string
	takesArg bool
}

const (
	listRefresh  = "refresh"
	listNew      = "new"
	listCall     = "call"
	listEdit     = "edit"
	listDelete   = "delete"
	listImport   = "import"
	listSettings = "settings"
	listQuit     = "quit"
)

var listOptions = []listOption{
	{id: listRefresh, synonyms: []string{"r", "refresh", "reload"}},
	{id: listNew, synonyms: []string{"n", "new", "add"}},
	{id: listCall, synonyms: []string{"c", "call", "dial"}, takesArg: true},
	{id: listEdit, synonyms: []string{"e", "edit", "open"}, takesArg: true},
	{id: listDelete, synonyms: []string{"d", "delete", "rm"}, takesArg: true},
	{id: listImport, synonyms: []string{"import"}, takesArg: true},
	{id: listSettings, synonyms: []string{"s", "settings", "help"}},
	{id: listQuit, synonyms: []string{"q", "quit", "exit", "exit."}},
}

// parseListCommand splits input into a known command and its argument. Bare
// command words without an argument select the highlighted row.
func parseListCommand(input string) (string, string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", "", false
	}
	word, rest := trimmed, ""
	if idx := strings.IndexAny(trimmed, " \t"); idx >= 0 {
		word, rest = trimmed[:idx], strings.TrimSpace(trimmed[idx+1:])
	}
	word = strings.ToLower(word)
	for _, option := range listOptions {
		for _, syn := range option.synonyms {
			if word != syn {
				continue
			}
			if rest != "" && !option.takesArg {
				return "", "", false
			}
			return option.id, rest, true
		}
	}
	return "", "", false
}

// resolveCustomer finds a customer by list number, exact name, unique
// prefix, or closest name within a small edit distance.
func resolveCustomer(list []customers.Customer, input string) (customers.Customer, bool) {
	var empty customers.Customer
	query := strings.TrimSpace(input)
	query = strings.TrimPrefix(query, "#")
	if query == "" || len(list) == 0 {
		return empty, false
	}
	if idx, err := strconv.Atoi(query); err == nil {
		if idx > 0 && idx <= len(list) {
			return list[idx-1], true
		}
		return empty, false
	}
	for i := range list {
		if strings.EqualFold(list[i].DisplayName, query) {
			return list[i], true
		}
	}

	lower := strings.ToLower(query)
	var match customers.Customer
	count := 0
	for i := range list {
		if strings.HasPrefix(strings.ToLower(list[i].DisplayName), lower) {
			match = list[i]
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	if count > 1 {
		return empty, false
	}

	best, bestDist, ties := -1, maxFuzzyDistance+1, 0
	for i := range list {
		d := levenshtein.ComputeDistance(lower, strings.ToLower(list[i].DisplayName))
		switch {
		case d < bestDist:
			best, bestDist, ties = i, d, 1
		case d == bestDist:
			ties++
		}
	}
	if best >= 0 && ties == 1 {
		return list[best], true
	}
	return empty, false
}

const maxFuzzyDistance = 2

// filterCustomers keeps customers whose name, company, email or phone
// contains term, case-insensitively.
func filterCustomers(list []customers.Customer, term string) []customers.Customer {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return list
	}
	var out []customers.Customer
	for _, c := range list {
		haystack := strings.ToLower(strings.Join([]string{c.DisplayName, c.Company, c.Email, c.Phone}, "\x00"))
		if strings.Contains(haystack, term) {
			out = append(out, c)
		}
	}
	return out
}
