package fixer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/syntax"
)

func TestFixBrackets_ThreeUnclosedBraces(t *testing.T) {
	const file = "src/App.tsx"
	code := "function App() {\n  if (ready) {\n    for (const item of items) {\n      console.log(item);\n"

	r := TryLocalFix("SyntaxError: Unexpected end of input", file, code, nil)
	require.True(t, r.Success)
	assert.Equal(t, FixBracketBalanceType, r.FixType)
	assert.Equal(t, code+"}}}", r.Files[file], "exactly three closers are appended and nothing else")
	assert.True(t, syntax.CheckBrackets(r.Files[file]).Valid)
}

func TestFixBrackets_Idempotent(t *testing.T) {
	inputs := []string{
		"const a = [1, {b: (2",
		"function f() { return `x ${y}` ",
		"if (a) { // }\n",
		"const s = \"{{{\"; f(",
	}
	for _, in := range inputs {
		first := FixBrackets("a.ts", in)
		require.Truef(t, first.Success, "expected a repair for %q", in)
		out := first.Files["a.ts"]
		assert.True(t, strings.HasPrefix(out, in), "existing code must be kept")

		second := FixBrackets("a.ts", out)
		assert.False(t, second.Success, "second pass must be a no-op for %q", out)
	}
}

func TestFixBrackets_Declines(t *testing.T) {
	tests := map[string]string{
		"balanced":             "function f() { return [1]; }",
		"mismatch":             "const a = (1];",
		"stray closer":         "a()\n}",
		"open comment":         "f( /* never closed",
		"open template expr":   "const s = `a ${ f(",
		"unterminated literal": "const s = `abc",
		"open string":          "f(\"abc",
	}
	for name, code := range tests {
		t.Run(name, func(t *testing.T) {
			assert.False(t, FixBrackets("a.ts", code).Success)
		})
	}
}

func TestFixAttributeCasing(t *testing.T) {
	code := "const label = \"class = 'x'\";\n" +
		"export const B = () => (\n" +
		"  <button onclick={go} class=\"btn\" tabindex=\"0\">\n" +
		"    <label for=\"name\">Name</label>\n" +
		"  </button>\n" +
		");\n"
	want := "const label = \"class = 'x'\";\n" +
		"export const B = () => (\n" +
		"  <button onClick={go} className=\"btn\" tabIndex=\"0\">\n" +
		"    <label htmlFor=\"name\">Name</label>\n" +
		"  </button>\n" +
		");\n"

	r := FixAttributeCasing("B.tsx", code)
	require.True(t, r.Success)
	if diff := cmp.Diff(want, r.Files["B.tsx"]); diff != "" {
		t.Errorf("attribute casing mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, r.Description, "onclick→onClick")

	again := FixAttributeCasing("B.tsx", r.Files["B.tsx"])
	assert.False(t, again.Success)
}

func TestFixVoidElements(t *testing.T) {
	code := `return (<div><img src="a.png"></img><br><input type="text" /></div>);`
	want := `return (<div><img src="a.png" /><br /><input type="text" /></div>);`

	r := FixVoidElements("a.jsx", code)
	require.True(t, r.Success)
	assert.Equal(t, want, r.Files["a.jsx"])
	assert.True(t, syntax.CheckMarkup(r.Files["a.jsx"]).Valid)
}

func TestFixFragmentWrap(t *testing.T) {
	code := "function A() {\n  return (\n    <h1>Hi</h1>\n    <p>x</p>\n  );\n}\n"
	want := "function A() {\n  return (\n    <>\n      <h1>Hi</h1>\n      <p>x</p>\n    </>\n  );\n}\n"

	r := TryLocalFix("Adjacent JSX elements must be wrapped in an enclosing tag", "A.jsx", code, nil)
	require.True(t, r.Success)
	assert.Equal(t, FixFragmentWrapType, r.FixType)
	if diff := cmp.Diff(want, r.Files["A.jsx"]); diff != "" {
		t.Errorf("fragment wrap mismatch (-want +got):\n%s", diff)
	}

	single := "const B = () => (\n  <div>\n    <p>x</p>\n  </div>\n);\n"
	assert.False(t, FixFragmentWrap("B.jsx", single).Success)
	assert.False(t, FixFragmentWrap("A.jsx", want).Success)
}

func TestFixOptionalChaining(t *testing.T) {
	code := "const n = user.profile.name;\n" +
		"this.name = 'x';\n" +
		"user.name = 'y';\n" +
		"const s = \"user.name\";\n" +
		"// user.name\n" +
		"const t = user?.name;\n" +
		"if (user.name === 'z') {}\n" +
		"const u = getUser().name.length;\n"
	want := "const n = user.profile?.name;\n" +
		"this.name = 'x';\n" +
		"user.name = 'y';\n" +
		"const s = \"user.name\";\n" +
		"// user.name\n" +
		"const t = user?.name;\n" +
		"if (user?.name === 'z') {}\n" +
		"const u = getUser()?.name.length;\n"

	r := TryLocalFix("TypeError: Cannot read properties of undefined (reading 'name')", "u.ts", code, nil)
	require.True(t, r.Success)
	assert.Equal(t, FixOptionalChainingType, r.FixType)
	if diff := cmp.Diff(want, r.Files["u.ts"]); diff != "" {
		t.Errorf("optional chaining mismatch (-want +got):\n%s", diff)
	}
}

func TestFixIdentifierTypo(t *testing.T) {
	code := "const [count, setCount] = useState(0);\n" +
		"const label = 'setCont';\n" +
		"const handleClick = () => setCont(count + 1);\n"
	want := "const [count, setCount] = useState(0);\n" +
		"const label = 'setCont';\n" +
		"const handleClick = () => setCount(count + 1);\n"

	r := TryLocalFix("ReferenceError: setCont is not defined", "C.jsx", code, nil)
	require.True(t, r.Success)
	assert.Equal(t, FixIdentifierTypoType, r.FixType)
	assert.Equal(t, want, r.Files["C.jsx"])

	assert.False(t, FixIdentifierTypo("C.jsx", "const handleSubmit = 1;\nfoo();", "foo").Success)
	assert.False(t, FixIdentifierTypo("C.jsx", "const windows = 1;\nwindow.x;", "window").Success)
}

func TestDeclaredNames(t *testing.T) {
	code := "const a = 1;\nlet [first, setFirst] = useState();\nfunction go() {}\nvar z;\nclass Box {}\n"
	assert.Equal(t, []string{"a", "first", "setFirst", "go", "z", "Box"}, declaredNames(code))
}

func TestTryLocalFix_NoFix(t *testing.T) {
	r := TryLocalFix("Something unexpected happened", "a.ts", "const a = 1;\n", nil)
	assert.False(t, r.Success)
	assert.Empty(t, r.Files)

	assert.False(t, TryLocalFix("Search is not defined", "a.ts", "", nil).Success)
}

func TestTryLocalFix_Pure(t *testing.T) {
	code := "export const A = () => <Search />;\n"
	a := TryLocalFix("Search is not defined", "A.tsx", code, nil)
	b := TryLocalFix("Search is not defined", "A.tsx", code, nil)
	assert.Equal(t, a, b)
	assert.Equal(t, "export const A = () => <Search />;\n", code)
}

func TestMultiFile(t *testing.T) {
	files := models.FileSet{
		"src/App.tsx":        `import { add } from "src/utils/math";`,
		"src/pages/Calc.tsx": `import { add } from "src/utils/math";`,
		"src/utils/math.ts":  `export const add = (a, b) => a + b;`,
	}
	parsed := &models.ParsedError{Type: models.ErrorTypeBareSpecifier, ImportPath: "src/utils/math"}
	r := MultiFile(`"src/utils/math" was a bare specifier`, parsed, files)
	require.True(t, r.Success)
	assert.Equal(t, []string{"src/App.tsx", "src/pages/Calc.tsx"}, r.Files.Paths())
	assert.Equal(t, `import { add } from "../utils/math";`, r.Files["src/pages/Calc.tsx"])

	none := MultiFile("boom", &models.ParsedError{Type: models.ErrorTypeRuntime}, files)
	assert.False(t, none.Success)
}

func TestProactive(t *testing.T) {
	files := models.FileSet{
		"src/A.tsx":     `<div class="a"><br></div>`,
		"src/b.css":     `.a { color: red;`,
		"src/c.ts":      `function f() {`,
		"src/clean.tsx": `export const C = () => <div className="ok" />;`,
	}
	results := Proactive(files)
	require.Len(t, results, 2)

	assert.Equal(t, `<div className="a"><br /></div>`, results[0].Files["src/A.tsx"])
	assert.Equal(t, FixProactiveType, results[0].FixType)
	assert.Equal(t, `function f() {}`, results[1].Files["src/c.ts"])
}
