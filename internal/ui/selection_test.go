package ui

import (
	"testing"

	"customerterm/internal/customers"
)

var sampleList = []customers.Customer{
	{ID: "1", DisplayName: "Ada Lovelace", Company: "Engines"},
	{ID: "2", DisplayName: "Alan Turing", Phone: "555-0101"},
	{ID: "3", DisplayName: "Grace Hopper", Email: "grace@navy.mil"},
}

func TestParseListCommand(t *testing.T) {
	cases := []struct {
		input, action, arg string
		ok                 bool
	}{
		{"r", listRefresh, "", true},
		{"  NEW ", listNew, "", true},
		{"call 2", listCall, "2", true},
		{"dial grace hopper", listCall, "grace hopper", true},
		{"e", listEdit, "", true},
		{"rm 3", listDelete, "3", true},
		{"import ~/people.csv", listImport, "~/people.csv", true},
		{"exit.", listQuit, "", true},
		{"refresh now", "", "", false},
		{"ada", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		action, arg, ok := parseListCommand(tc.input)
		if action != tc.action || arg != tc.arg || ok != tc.ok {
			t.Fatalf("parseListCommand(%q) = %q, %q, %v", tc.input, action, arg, ok)
		}
	}
}

func TestResolveCustomer(t *testing.T) {
	cases := map[string]string{
		"2":            "2",
		"#3":           "3",
		"grace hopper": "3",
		"gr":           "3",
		"Alan Turnig":  "2",
	}
	for input, want := range cases {
		got, ok := resolveCustomer(sampleList, input)
		if !ok || got.ID != want {
			t.Fatalf("resolveCustomer(%q) = %+v, %v; want id %s", input, got, ok, want)
		}
	}
	for _, input := range []string{"", "0", "4", "a", "zzzzzz"} {
		if got, ok := resolveCustomer(sampleList, input); ok {
			t.Fatalf("resolveCustomer(%q) = %+v, want no match", input, got)
		}
	}
}

func TestFilterCustomers(t *testing.T) {
	if got := filterCustomers(sampleList, ""); len(got) != 3 {
		t.Fatalf("blank filter = %d items", len(got))
	}
	cases := map[string]string{"engines": "1", "0101": "2", "NAVY": "3"}
	for term, want := range cases {
		got := filterCustomers(sampleList, term)
		if len(got) != 1 || got[0].ID != want {
			t.Fatalf("filter %q = %+v", term, got)
		}
	}
}
