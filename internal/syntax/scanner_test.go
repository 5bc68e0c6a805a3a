package syntax

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBrackets(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		valid    bool
		kind     IssueKind
		missing  string
		wantLine int
	}{
		{name: "empty", src: "", valid: true},
		{name: "balanced function", src: "function a(b) {\n  return [b, {c: 1}];\n}\n", valid: true},
		{name: "brackets in strings and comments", src: "const s = \"((\"; // )\n/* { */ const t = '[';\nf(s, t);\n", valid: true},
		{name: "template expression", src: "const s = `a ${ {x: 1}.x } b ${fn(`inner ${y}`)}`;\n", valid: true},
		{name: "jsx apostrophe", src: "return (\n  <p>Don't worry</p>\n);\n", valid: true},
		{name: "escaped quote", src: "const s = 'it\\'s (';\n", valid: true},
		{name: "unclosed brace", src: "function a() {\n  if (x) {\n", kind: IssueUnclosed, missing: "}}", wantLine: 1},
		{name: "unclosed mixed", src: "foo(bar, [1, {", kind: IssueUnclosed, missing: "}])"},
		{name: "mismatch", src: "const a = (1];", kind: IssueMismatch, wantLine: 1},
		{name: "stray closer", src: "a();\n)", kind: IssueUnexpectedCloser, wantLine: 2},
		{name: "unterminated block comment", src: "/* never closed\nconst a = 1;", kind: IssueUnterminatedComment},
		{name: "unterminated template", src: "const a = `abc", kind: IssueUnterminatedTemplate},
		{name: "string open at end of input", src: "const s = \"abc", kind: IssueUnterminatedString, wantLine: 1},
		{name: "string open at end of line", src: "const a = 1;\nconst s = \"never closed\n", kind: IssueUnterminatedString, wantLine: 2},
		{name: "string after arrow", src: "const f = () => 'abc\n", kind: IssueUnterminatedString, wantLine: 1},
		{name: "string in call", src: "foo('abc);\n", kind: IssueUnterminatedString, wantLine: 1},
		{name: "jsx apostrophe after expression", src: "return <p>{name}'s page</p>;\n", valid: true},
		{name: "jsx apostrophe after prose punctuation", src: "return (\n  <p>\n    Hello, don't (really)\n  </p>\n);\n", valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckBrackets(tt.src)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Nil(t, got.Issue)
				return
			}
			require.NotNil(t, got.Issue)
			assert.Equal(t, tt.kind, got.Issue.Kind)
			assert.Equal(t, tt.missing, got.Missing)
			if tt.wantLine > 0 {
				assert.Equal(t, tt.wantLine, got.Issue.Line)
			}
		})
	}
}

func TestCheckBrackets_TemplateExpressionLeftOpen(t *testing.T) {
	got := CheckBrackets("const a = `x ${ b")
	assert.False(t, got.Valid)
	assert.Empty(t, got.Missing, "an open template expression cannot be repaired by appending closers")
}

// randomBalanced builds a balanced bracket sequence with string and comment
// noise that contains unbalanced brackets.
func randomBalanced(r *rand.Rand, depth int) string {
	var sb strings.Builder
	noise := []string{"'(('", "\"]\"", "// }}\n", "/* ([ */", "`{${'('}`", "x", " ", "\n"}
	pairs := []string{"()", "[]", "{}"}
	for i := 0; i < 3; i++ {
		sb.WriteString(noise[r.Intn(len(noise))])
		if depth > 0 && r.Intn(2) == 0 {
			p := pairs[r.Intn(len(pairs))]
			sb.WriteByte(p[0])
			sb.WriteString(randomBalanced(r, depth-1))
			sb.WriteByte(p[1])
		}
	}
	return sb.String()
}

func TestCheckBrackets_NoiseIsIgnored(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		src := randomBalanced(r, 4)
		got := CheckBrackets(src)
		require.Truef(t, got.Valid, "expected valid: %q (%v)", src, got.Issue)

		unbalanced := "(" + src
		got = CheckBrackets(unbalanced)
		require.Falsef(t, got.Valid, "expected invalid: %q", unbalanced)
		assert.Equal(t, ")", got.Missing)
	}
}

func TestMask(t *testing.T) {
	src := "a('b') // c\n`d${e}`"
	mask := Mask(src)
	require.Len(t, mask, len(src))

	assert.Equal(t, RegionCode, mask[0])
	assert.Equal(t, RegionString, mask[strings.Index(src, "b")])
	assert.Equal(t, RegionLineComment, mask[strings.Index(src, "c")])
	assert.Equal(t, RegionTemplate, mask[strings.Index(src, "d")])
	assert.Equal(t, RegionCode, mask[strings.Index(src, "e")])
}

func TestFindMatching(t *testing.T) {
	src := "return (\n  <div>{\")\"}</div>\n);"
	open := strings.Index(src, "(")
	close := FindMatching(src, open)
	assert.Equal(t, strings.LastIndex(src, ")"), close)

	assert.Equal(t, -1, FindMatching("(a", 0))
	assert.Equal(t, -1, FindMatching("abc", 1))
}

func TestPosition(t *testing.T) {
	line, col := Position("ab\ncd", 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}
