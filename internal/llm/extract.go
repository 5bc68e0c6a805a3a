package llm

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/mender/internal/models"
)

var (
	markdown = goldmark.New()

	pathTokenRe   = regexp.MustCompile(`^\.?/?[\w@.-]+(?:/[\w@.-]+)*\.(?:tsx|ts|jsx|js|mjs|cjs|css|scss|json|html)$`)
	commentPathRe = regexp.MustCompile(`^\s*(?://|/\*|<!--)\s*(?:file(?:name)?:\s*)?(\S+?)\s*(?:\*/|-->)?\s*$`)
)

// CodeBlock is one fenced block of a response.
type CodeBlock struct {
	Language string
	Path     string // empty when the response did not name a file
	Code     string
}

// CodeBlocks returns the fenced code blocks of a markdown response in order.
// A block's path comes from its info string, the paragraph or heading right
// before it, or a path comment on its first line.
func CodeBlocks(response string) []CodeBlock {
	source := []byte(response)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}

		block := CodeBlock{Code: buf.String()}
		if fcb.Info != nil {
			fields := strings.Fields(string(fcb.Info.Segment.Value(source)))
			if len(fields) > 0 && !pathTokenRe.MatchString(cleanToken(fields[0])) {
				block.Language = fields[0]
				fields = fields[1:]
			}
			block.Path = firstPath(fields)
		}
		if block.Path == "" {
			block.Path = hintPath(fcb.PreviousSibling(), source)
		}
		if block.Path == "" {
			first, _, _ := strings.Cut(block.Code, "\n")
			if m := commentPathRe.FindStringSubmatch(first); m != nil && pathTokenRe.MatchString(cleanToken(m[1])) {
				block.Path = normalizePath(m[1])
			}
		}
		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

func hintPath(prev ast.Node, source []byte) string {
	if prev == nil {
		return ""
	}
	switch prev.(type) {
	case *ast.Paragraph, *ast.Heading:
	default:
		return ""
	}
	var buf bytes.Buffer
	lines := prev.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
		buf.WriteByte(' ')
	}
	fields := strings.Fields(buf.String())
	// the path nearest the fence wins
	for i := len(fields) - 1; i >= 0; i-- {
		if p := firstPath(fields[i : i+1]); p != "" {
			return p
		}
	}
	return ""
}

func firstPath(tokens []string) string {
	for _, tok := range tokens {
		tok = cleanToken(tok)
		if pathTokenRe.MatchString(tok) {
			return normalizePath(tok)
		}
	}
	return ""
}

func cleanToken(tok string) string {
	if k, v, ok := strings.Cut(tok, "="); ok && (k == "file" || k == "title" || k == "path") {
		tok = v
	}
	return strings.Trim(tok, "`*\"'():,")
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
}

// ExtractCode returns the first fenced block of a response, or the whole
// trimmed response when it has no fences.
func ExtractCode(response string) string {
	if blocks := CodeBlocks(response); len(blocks) > 0 {
		return blocks[0].Code
	}
	return strings.TrimSpace(response)
}

// ExtractFiles maps a response to full file contents. Blocks that name a
// file are keyed by that path. A single unnamed block, or a response without
// fences, is attributed to fallbackPath. Later blocks for the same path
// replace earlier ones.
func ExtractFiles(response, fallbackPath string) models.FileSet {
	files := models.FileSet{}
	blocks := CodeBlocks(response)

	if len(blocks) == 0 {
		if code := strings.TrimSpace(response); code != "" && fallbackPath != "" {
			files[fallbackPath] = code + "\n"
		}
		return files
	}

	for _, b := range blocks {
		path := b.Path
		if path == "" && len(blocks) == 1 {
			path = fallbackPath
		}
		if path == "" || strings.TrimSpace(b.Code) == "" {
			continue
		}
		files[path] = b.Code
	}
	return files
}
