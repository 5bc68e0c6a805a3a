package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/harrison/mender/internal/models"
)

// maxRelatedInPrompt caps the context files ai-full sends along.
const maxRelatedInPrompt = 3

func fenceLanguage(p string) string {
	switch path.Ext(p) {
	case ".tsx":
		return "tsx"
	case ".ts":
		return "ts"
	case ".jsx":
		return "jsx"
	case ".css", ".scss":
		return "css"
	case ".json":
		return "json"
	default:
		return "js"
	}
}

func writeFile(sb *strings.Builder, p, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	fmt.Fprintf(sb, "%s%s %s\n%s", fence, fenceLanguage(p), p, content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteByte('\n')
	}
	sb.WriteString(fence + "\n\n")
}

func writeError(sb *strings.Builder, parsed *models.ParsedError) {
	sb.WriteString("## Error\n\n")
	sb.WriteString(parsed.Message)
	sb.WriteString("\n\n")
	if parsed.Stack != "" {
		fmt.Fprintf(sb, "Stack:\n%s\n\n", parsed.Stack)
	}
	fmt.Fprintf(sb, "Type: %s (category %s)\n", parsed.Type, parsed.Category)
	if parsed.Line > 0 {
		fmt.Fprintf(sb, "Location: %s:%d:%d\n", parsed.File, parsed.Line, parsed.Column)
	}
	for _, kv := range [][2]string{
		{"Identifier", parsed.Identifier},
		{"Import path", parsed.ImportPath},
		{"Missing property", parsed.MissingProperty},
		{"Expected type", parsed.ExpectedType},
		{"Actual type", parsed.ActualType},
	} {
		if kv[1] != "" {
			fmt.Fprintf(sb, "%s: %s\n", kv[0], kv[1])
		}
	}
	if parsed.SuggestedFix != "" {
		fmt.Fprintf(sb, "Hint: %s\n", parsed.SuggestedFix)
	}
	sb.WriteString("\n")
}

const answerFormat = "Answer with the complete corrected file in one fenced code block whose info string is the language followed by the file path. Keep every export, keep unrelated code unchanged and do not add commentary."

func quickPrompt(parsed *models.ParsedError, target, code string) string {
	var sb strings.Builder
	sb.WriteString("Fix the error below with the smallest possible change.\n\n")
	writeError(&sb, parsed)
	sb.WriteString("## File\n\n")
	writeFile(&sb, target, code)
	sb.WriteString(answerFormat)
	return sb.String()
}

func fullPrompt(parsed *models.ParsedError, target string, files models.FileSet) string {
	var sb strings.Builder
	sb.WriteString("Fix the error below. Other project files are included for context; change them only if the fix requires it, and return every file you change.\n\n")
	writeError(&sb, parsed)
	sb.WriteString("## File with the error\n\n")
	writeFile(&sb, target, files[target])

	related := make([]string, 0, maxRelatedInPrompt)
	for _, p := range parsed.RelatedFiles {
		if p != target && len(related) < maxRelatedInPrompt {
			if _, ok := files[p]; ok {
				related = append(related, p)
			}
		}
	}
	if len(related) > 0 {
		sb.WriteString("## Related files\n\n")
		for _, p := range related {
			writeFile(&sb, p, files[p])
		}
	}
	sb.WriteString("Answer with each complete changed file in its own fenced code block whose info string is the language followed by the file path. Keep every export and do not add commentary.")
	return sb.String()
}

func iterativePrompt(parsed *models.ParsedError, target, code string, feedback []string) string {
	var sb strings.Builder
	sb.WriteString("Fix the error below.\n\n")
	writeError(&sb, parsed)
	if len(feedback) > 0 {
		sb.WriteString("## Previous attempts failed\n\n")
		for _, f := range feedback {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
		sb.WriteString("\nAvoid repeating these mistakes.\n\n")
	}
	sb.WriteString("## File\n\n")
	writeFile(&sb, target, code)
	sb.WriteString(answerFormat)
	return sb.String()
}

func regeneratePrompt(parsed *models.ParsedError, target, code string) string {
	var sb strings.Builder
	sb.WriteString("The file below keeps failing with the error shown. Rewrite it from scratch as a clean, working implementation of the same component. Keep its file path, its public exports and their signatures, and its visible behaviour.\n\n")
	writeError(&sb, parsed)
	sb.WriteString("## Current file\n\n")
	writeFile(&sb, target, code)
	sb.WriteString("Answer with the complete new file in one fenced code block whose info string is the language followed by the file path.")
	return sb.String()
}
