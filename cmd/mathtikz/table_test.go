package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Model", "Aliases", "Default"}, [][]string{
		{"google/gemini-2.0-flash-001", "fast", "yes"},
		{"deepseek/deepseek-r1:free"},
	}, []columnAlignment{alignLeft, alignLeft, alignRight})
	for _, want := range []string{"MODEL", "ALIASES", "google/gemini-2.0-flash-001", "deepseek/deepseek-r1:free", "yes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
