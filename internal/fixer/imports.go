package fixer

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/harrison/mender/internal/analyzer"
	"github.com/harrison/mender/internal/models"
)

// scriptExtensions are stripped from import specifiers. Other extensions
// (.css, .svg, .json) are part of the specifier and kept.
var scriptExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".cjs"}

func stripScriptExt(p string) string {
	for _, ext := range scriptExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

func splitDir(dir string) []string {
	dir = strings.Trim(path.Clean("/"+dir), "/")
	if dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}

// RelativeImport returns the specifier that imports to from the file at from.
// Both are project-relative paths; a leading slash is ignored.
//
//	RelativeImport("src/components/A.tsx", "src/utils/helpers.ts") == "../utils/helpers"
func RelativeImport(from, to string) string {
	fromDir := splitDir(path.Dir(strings.TrimPrefix(from, "/")))
	to = stripScriptExt(strings.TrimPrefix(to, "/"))
	toDir := splitDir(path.Dir(to))
	base := path.Base(to)

	common := 0
	for common < len(fromDir) && common < len(toDir) && fromDir[common] == toDir[common] {
		common++
	}

	var sb strings.Builder
	ups := len(fromDir) - common
	if ups == 0 {
		sb.WriteString("./")
	} else {
		sb.WriteString(strings.Repeat("../", ups))
	}
	for _, seg := range toDir[common:] {
		sb.WriteString(seg)
		sb.WriteByte('/')
	}
	sb.WriteString(base)
	return sb.String()
}

// specifierRe matches every import form naming spec, with or without a
// leading slash or script extension. Group 1 is the keyword prefix, group 2
// the opening quote.
func specifierRe(spec string) *regexp.Regexp {
	spec = stripScriptExt(strings.TrimPrefix(spec, "/"))
	return regexp.MustCompile(`(\bfrom\s*|\bimport\s*|\bimport\s*\(\s*|\brequire\s*\(\s*)(["'])/?` +
		regexp.QuoteMeta(spec) + `(?:\.(?:tsx|ts|jsx|js|mjs|cjs))?["']`)
}

// rewriteSpecifier replaces every import of spec in code with the path
// relative to file. It returns code unchanged when nothing matched.
func rewriteSpecifier(file, code, spec, target string) (string, int) {
	re := specifierRe(spec)
	rel := RelativeImport(file, target)
	count := 0
	out := re.ReplaceAllStringFunc(code, func(match string) string {
		m := re.FindStringSubmatch(match)
		count++
		return m[1] + m[2] + rel + m[2]
	})
	return out, count
}

// FixBareSpecifier rewrites the bare import path in a single file. Package
// names such as "react" are left alone; only specifiers that look like
// project paths are rewritten.
func FixBareSpecifier(file, code, bare string) *models.LocalFixResult {
	if bare == "" || !analyzer.IsProjectPath(bare) {
		return models.NoLocalFix()
	}
	out, n := rewriteSpecifier(file, code, bare, bare)
	if n == 0 || out == code {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: out},
		Description: fmt.Sprintf("Rewrote %d import(s) of %q as %q", n, bare, RelativeImport(file, bare)),
		FixType:     FixBareSpecifierType,
	}
}

// FixBareSpecifiers rewrites the bare path in every file of the set,
// returning one result per file changed, ordered by path.
func FixBareSpecifiers(files models.FileSet, bare string) []*models.LocalFixResult {
	var results []*models.LocalFixResult
	for _, p := range files.Paths() {
		if r := FixBareSpecifier(p, files[p], bare); r.Success {
			results = append(results, r)
		}
	}
	return results
}

// resolveRelative resolves a relative specifier against the importing file
// and reports whether it names a file of the set.
func resolveRelative(file, spec string, files models.FileSet) bool {
	target := path.Clean(path.Join(path.Dir(file), spec))
	if _, ok := files[target]; ok {
		return true
	}
	for _, ext := range scriptExtensions {
		if _, ok := files[target+ext]; ok {
			return true
		}
		if _, ok := files[target+"/index"+ext]; ok {
			return true
		}
	}
	return false
}

// FixMissingModule repoints imports of a specifier that does not resolve to
// the single file of the set with the same base name.
func FixMissingModule(files models.FileSet, spec string) []*models.LocalFixResult {
	if spec == "" || !strings.HasPrefix(spec, ".") {
		return nil
	}
	base := path.Base(stripScriptExt(spec))
	var candidates []string
	for _, p := range files.Paths() {
		if path.Base(stripScriptExt(p)) == base {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) != 1 {
		return nil
	}
	target := candidates[0]

	var results []*models.LocalFixResult
	for _, p := range files.Paths() {
		if p == target || resolveRelative(p, spec, files) {
			continue
		}
		quoted := regexp.MustCompile(`(\bfrom\s*|\bimport\s*|\bimport\s*\(\s*|\brequire\s*\(\s*)(["'])` + regexp.QuoteMeta(spec) + `["']`)
		rel := RelativeImport(p, target)
		code := files[p]
		out := quoted.ReplaceAllString(code, "${1}${2}"+strings.ReplaceAll(rel, "$", "$$")+"${2}")
		if out != code {
			results = append(results, &models.LocalFixResult{
				Success:     true,
				Files:       models.FileSet{p: out},
				Description: fmt.Sprintf("Pointed %q at %s", spec, target),
				FixType:     FixMissingModuleType,
			})
		}
	}
	return results
}

// ImportKind is how a known symbol is imported from its module.
type ImportKind int

const (
	ImportNamed ImportKind = iota
	ImportDefault
	ImportType
)

// SymbolSource says where a well-known identifier comes from.
type SymbolSource struct {
	Module string
	Kind   ImportKind
}

// KnownSymbols is the built-in table used to synthesize missing imports.
var KnownSymbols = map[string]SymbolSource{}

func register(module string, kind ImportKind, names ...string) {
	for _, n := range names {
		KnownSymbols[n] = SymbolSource{Module: module, Kind: kind}
	}
}

func init() {
	register("react", ImportDefault, "React")
	register("react", ImportNamed,
		"useState", "useEffect", "useRef", "useMemo", "useCallback", "useContext",
		"useReducer", "useLayoutEffect", "useId", "useTransition", "useDeferredValue",
		"Fragment", "createContext", "forwardRef", "memo", "lazy", "Suspense", "StrictMode")
	register("react", ImportType,
		"ReactNode", "FC", "ChangeEvent", "FormEvent", "MouseEvent", "KeyboardEvent",
		"CSSProperties", "PropsWithChildren", "ComponentProps")
	register("lucide-react", ImportNamed,
		"Search", "X", "Menu", "Check", "Plus", "Minus", "Trash", "Trash2", "Edit", "Pencil",
		"Settings", "User", "Users", "Home", "Star", "Heart", "Mail", "Bell", "Calendar",
		"Filter", "Sun", "Moon", "Eye", "EyeOff", "Copy", "Download", "Upload",
		"ExternalLink", "Info", "AlertCircle", "AlertTriangle", "CheckCircle", "XCircle",
		"Loader2", "ArrowRight", "ArrowLeft", "ArrowUp", "ArrowDown",
		"ChevronDown", "ChevronUp", "ChevronLeft", "ChevronRight", "MoreHorizontal",
		"MoreVertical", "LogOut", "LogIn", "ShoppingCart", "Clock", "MapPin", "Phone", "Globe")
	register("framer-motion", ImportNamed, "motion", "AnimatePresence")
	register("react-router-dom", ImportNamed,
		"Link", "NavLink", "Routes", "Route", "BrowserRouter", "Outlet",
		"useNavigate", "useParams", "useLocation", "useSearchParams")
	register("clsx", ImportDefault, "clsx")
}

// IsImported reports whether id is bound by an import or require in code.
func IsImported(code, id string) bool {
	q := regexp.QuoteMeta(id)
	shapes := []string{
		`\bimport\s+` + q + `\s*(?:,|\bfrom\b)`,
		`\bimport\s+(?:type\s+)?(?:[\w$]+\s*,\s*)?\{[^}]*\b` + q + `\b[^}]*\}\s*from\b`,
		`\bimport\s+(?:[\w$]+\s*,\s*)?\*\s*as\s+` + q + `\b`,
		`\b(?:const|let|var)\s+(?:` + q + `|\{[^}]*\b` + q + `\b[^}]*\})\s*=\s*require\s*\(`,
	}
	for _, s := range shapes {
		if regexp.MustCompile(s).MatchString(code) {
			return true
		}
	}
	return false
}

var (
	importStmtRe = regexp.MustCompile(`(?m)^[ \t]*import\b[^;'"]*?['"][^'"\n]+['"][ \t]*;?[ \t]*$`)
	directiveRe  = regexp.MustCompile(`^\s*['"]use (?:client|server|strict)['"];?[ \t]*\n?`)
	fromQuoteRe  = regexp.MustCompile(`\bfrom\s*(['"])`)
)

// importStyle detects the quote and semicolon conventions of the file.
func importStyle(code string) (quote string, semi bool) {
	quote, semi = "'", true
	if m := fromQuoteRe.FindStringSubmatch(code); m != nil {
		quote = m[1]
	}
	if loc := importStmtRe.FindStringIndex(code); loc != nil {
		semi = strings.HasSuffix(strings.TrimRight(code[loc[0]:loc[1]], " \t"), ";")
	}
	return quote, semi
}

func importStatement(id string, src SymbolSource, quote string, semi bool) string {
	var clause string
	switch src.Kind {
	case ImportDefault:
		clause = "import " + id
	case ImportType:
		clause = "import type { " + id + " }"
	default:
		clause = "import { " + id + " }"
	}
	stmt := clause + " from " + quote + src.Module + quote
	if semi {
		stmt += ";"
	}
	return stmt
}

// mergeImport adds id to an existing import of the same module. It returns
// false when no compatible import statement exists.
func mergeImport(code, id string, src SymbolSource) (string, bool) {
	re := regexp.MustCompile(`(?m)^([ \t]*import\s+)(type\s+)?([^;'"]*?)(\s*\bfrom\s*['"]` + regexp.QuoteMeta(src.Module) + `['"])`)
	for _, loc := range re.FindAllStringSubmatchIndex(code, -1) {
		isType := loc[4] >= 0
		clause := code[loc[6]:loc[7]]
		if strings.Contains(clause, "*") {
			continue
		}
		if isType != (src.Kind == ImportType) {
			continue
		}

		var merged string
		open, close := strings.Index(clause, "{"), strings.LastIndex(clause, "}")
		switch {
		case src.Kind == ImportDefault:
			if open < 0 || strings.TrimSpace(clause[:open]) != "" {
				continue // already has a default binding, or nothing to attach to
			}
			merged = id + ", " + clause
		case open >= 0 && close > open:
			inner := strings.TrimRight(clause[open+1:close], " \t\n")
			inner = strings.TrimSuffix(inner, ",")
			if strings.TrimSpace(inner) == "" {
				merged = clause[:open] + "{ " + id + " }" + clause[close+1:]
			} else if strings.Contains(inner, "\n") {
				indent := "  "
				if m := regexp.MustCompile(`\n([ \t]+)\S`).FindStringSubmatch(inner); m != nil {
					indent = m[1]
				}
				merged = clause[:open+1] + inner + ",\n" + indent + id + "\n" + strings.TrimLeft(clause[close:], " \t")
			} else {
				merged = clause[:open+1] + inner + ", " + id + " " + clause[close:]
			}
		default:
			// default-only import: import React from 'react'
			merged = strings.TrimSpace(clause) + ", { " + id + " }"
		}
		return code[:loc[6]] + merged + code[loc[7]:], true
	}
	return code, false
}

// AddImport inserts an import of id described by src. It merges into an
// existing import of the same module when possible, otherwise it inserts a
// new statement after the last import (or after a leading directive).
func AddImport(code, id string, src SymbolSource) string {
	if merged, ok := mergeImport(code, id, src); ok {
		return merged
	}
	quote, semi := importStyle(code)
	stmt := importStatement(id, src, quote, semi)

	if locs := importStmtRe.FindAllStringIndex(code, -1); len(locs) > 0 {
		end := locs[len(locs)-1][1]
		return code[:end] + "\n" + stmt + code[end:]
	}
	if loc := directiveRe.FindStringIndex(code); loc != nil {
		head := code[:loc[1]]
		if !strings.HasSuffix(head, "\n") {
			head += "\n"
		}
		return head + stmt + "\n" + code[loc[1]:]
	}
	return stmt + "\n" + code
}

// FixMissingImport adds an import for id when it is a known symbol that the
// file uses but does not import or declare.
func FixMissingImport(file, code, id string) *models.LocalFixResult {
	src, ok := KnownSymbols[id]
	if !ok || IsImported(code, id) || IsDeclared(code, id) {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: AddImport(code, id, src)},
		Description: fmt.Sprintf("Added import of %s from %s", id, src.Module),
		FixType:     FixMissingImportType,
	}
}

// FixMissingImports applies FixMissingImport to every file that references id.
func FixMissingImports(files models.FileSet, id string) []*models.LocalFixResult {
	if _, ok := KnownSymbols[id]; !ok {
		return nil
	}
	word := regexp.MustCompile(`\b` + regexp.QuoteMeta(id) + `\b`)
	var results []*models.LocalFixResult
	for _, p := range files.Paths() {
		code := files[p]
		if !word.MatchString(code) {
			continue
		}
		if r := FixMissingImport(p, code, id); r.Success {
			results = append(results, r)
		}
	}
	return results
}

var jsxRe = regexp.MustCompile(`<[A-Za-z][\w.]*[\s/>]|<>`)

// HasMarkup reports whether code appears to contain JSX.
func HasMarkup(code string) bool {
	return jsxRe.MatchString(code)
}

// FixFrameworkImport adds the top-level React import to a file that uses
// JSX or React.* without importing it.
func FixFrameworkImport(file, code string) *models.LocalFixResult {
	if IsImported(code, "React") || IsDeclared(code, "React") {
		return models.NoLocalFix()
	}
	if !HasMarkup(code) && !strings.Contains(code, "React.") {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: AddImport(code, "React", KnownSymbols["React"])},
		Description: "Added React import",
		FixType:     FixFrameworkImportType,
	}
}

// declaredNames returns identifiers declared with const/let/var/function,
// including both names of an array-destructuring pair, in source order.
func declaredNames(code string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	type hit struct {
		at    int
		names []string
	}
	var hits []hit
	for _, re := range declRes {
		for _, m := range re.FindAllStringSubmatchIndex(code, -1) {
			h := hit{at: m[0]}
			for g := 2; g+1 < len(m); g += 2 {
				if m[g] >= 0 {
					h.names = append(h.names, code[m[g]:m[g+1]])
				}
			}
			hits = append(hits, h)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	for _, h := range hits {
		for _, n := range h.names {
			add(n)
		}
	}
	return names
}

var declRes = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:const|let|var)\s+([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`\bfunction\s*\*?\s*([A-Za-z_$][\w$]*)`),
	regexp.MustCompile(`\b(?:const|let|var)\s*\[\s*([A-Za-z_$][\w$]*)\s*,\s*([A-Za-z_$][\w$]*)\s*\]`),
	regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)`),
}

// IsDeclared reports whether code declares id with const/let/var/function/class.
func IsDeclared(code, id string) bool {
	for _, n := range declaredNames(code) {
		if n == id {
			return true
		}
	}
	return false
}
