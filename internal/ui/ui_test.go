package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rulebook-dev/rulebook/internal/types"
)

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"hello world", 3, "..."},
		{"", 10, ""},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		if got := TruncateSimple(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

func TestOneLine(t *testing.T) {
	got := OneLine("{\n  \"code\": \"ARCH-001\",\n  \"name\": \"Layering\"\n}", 200)
	if want := `{ "code": "ARCH-001", "name": "Layering" }`; got != want {
		t.Errorf("OneLine = %q, want %q", got, want)
	}
	if got := OneLine("a b c d e f", 7); got != "a b ..." {
		t.Errorf("OneLine truncated = %q", got)
	}
}

func TestTruncateLines(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line " + string(rune('a'+i))
	}
	text := strings.Join(lines, "\n")

	if got := TruncateLines(text, 30, 3); got != text {
		t.Error("text under the limit should be unchanged")
	}

	got := TruncateLines(text, 10, 3)
	if !strings.HasPrefix(got, "line a\nline b\nline c\n") {
		t.Errorf("missing head: %q", got)
	}
	if !strings.HasSuffix(got, "line r\nline s\nline t") {
		t.Errorf("missing tail: %q", got)
	}
	if !strings.Contains(got, "14 lines hidden") {
		t.Errorf("missing hidden count: %q", got)
	}

	got = TruncateLines(text, 4, 3)
	if got != "line a\nline b\nline c\nline d\n..." {
		t.Errorf("small limit = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("the quick brown fox jumps\nover", 10)
	want := "the quick\nbrown fox\njumps\nover"
	if got != want {
		t.Errorf("WrapText = %q, want %q", got, want)
	}
	if got := WrapText("supercalifragilistic word", 5); got != "supercalifragilistic\nword" {
		t.Errorf("long word = %q", got)
	}
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		want  bool
		exact bool // false when the answer depends on the TTY
	}{
		{"NO_COLOR disables", map[string]string{"NO_COLOR": "1"}, false, true},
		{"CLICOLOR=0 disables", map[string]string{"CLICOLOR": "0"}, false, true},
		{"CLICOLOR_FORCE enables", map[string]string{"CLICOLOR_FORCE": "1"}, true, true},
		{"NO_COLOR beats CLICOLOR_FORCE", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); tt.exact && got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToPagerWritesDirectlyWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	if err := toPager(&buf, "hello\n", PagerOptions{NoPager: true}); err != nil {
		t.Fatalf("toPager: %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("toPager wrote %q", buf.String())
	}
}

func TestPagerCommand(t *testing.T) {
	t.Setenv("RB_PAGER", "")
	t.Setenv("PAGER", "more")
	if got := pagerCommand(); got != "more" {
		t.Errorf("pagerCommand() = %q, want more", got)
	}
	t.Setenv("RB_PAGER", "less -S")
	if got := pagerCommand(); got != "less -S" {
		t.Errorf("pagerCommand() = %q, want RB_PAGER", got)
	}
}

func TestRenderStatusAndRisk(t *testing.T) {
	for _, s := range types.AllStatuses() {
		if got := RenderStatus(s); !strings.Contains(got, string(s)) {
			t.Errorf("RenderStatus(%s) = %q", s, got)
		}
		if StatusIcon(s) == "" {
			t.Errorf("StatusIcon(%s) is empty", s)
		}
	}
	for _, r := range []types.RiskLevel{types.RiskSafe, types.RiskLow, types.RiskMedium, types.RiskHigh} {
		if got := RenderRisk(r); !strings.Contains(got, string(r)) {
			t.Errorf("RenderRisk(%s) = %q", r, got)
		}
	}
}

func TestRenderMarkdownPlainWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	in := "# Layering\n\nDomain must not import infrastructure."
	if got := RenderMarkdown(in); got != in {
		t.Errorf("RenderMarkdown with NO_COLOR = %q, want input unchanged", got)
	}
}
