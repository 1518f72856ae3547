package extractor

import (
	"strings"

	"github.com/pagesift/pagesift/internal/logger"
	"github.com/pagesift/pagesift/pkg/schema"
)

// SystemPrompt is the system message for extraction requests.
const SystemPrompt = `You are a data extraction assistant. Your task is to extract structured data from webpage content.

Rules:
1. Extract only the data that matches the schema fields
2. Return valid JSON matching the exact schema structure
3. If a field cannot be found, use null - never omit the key
4. For URLs, use absolute URLs when possible
5. For prices/numbers, extract the numeric value only (no currency symbols)
6. Be precise and extract exactly what is requested`

// BuildPrompt creates the user prompt for an extraction request.
func BuildPrompt(content string, s schema.Schema, instructions string, maxContentSize int) string {
	var prompt strings.Builder

	prompt.WriteString("Extract structured data from the following webpage content.\n\n")
	prompt.WriteString(s.ToPromptDescription())

	if instructions != "" {
		prompt.WriteString("\n## Additional Instructions\n")
		prompt.WriteString(instructions)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\n## Webpage Content\n")
	prompt.WriteString("```\n")
	prompt.WriteString(truncateContent(content, maxContentSize))
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// truncateContent limits content size to avoid token limits.
// maxLen of 0 means no limit.
func truncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	logger.Warn("content truncated due to length",
		"original_bytes", len(content),
		"max_bytes", maxLen)
	return content[:maxLen] + "\n\n[Content truncated due to length...]"
}
