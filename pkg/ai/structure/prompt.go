package structure

import (
	"fmt"
	"strings"

	"ai-notetaking-pipeline/pkg/utils"
)

const structureInstructions = `You turn source material into a structured study note.
Reply with ONE JSON object and nothing else, using this shape:
{
  "title": string,
  "summary": string,
  "language": string,
  "sections": [
    {"heading": string, "blocks": [
      {"type": "paragraph"|"heading"|"bullet_list"|"numbered_list"|"quote"|"code"|"key_term"|"callout"|"visual_placeholder",
       "text": string, "items": [string], "term": string, "placeholderId": string, "caption": string}
    ]}
  ],
  "visualOpportunities": [
    {"placeholderId": string, "description": string, "searchQuery": string}
  ]
}
Rules:
- Lists need "items"; key_term needs "term" and "text".
- Every visual opportunity must have a block of type "visual_placeholder" with the same placeholderId.
- Use placeholder ids like "visual-1", "visual-2".
- Propose at most %d visual opportunities, only where an image genuinely helps.
- Write everything in the language with code %q.`

// StructurePrompt builds the structure-generation prompt. The source text is
// cut to maxChars runes.
func StructurePrompt(text, language string, maxChars, maxVisuals int) string {
	if language == "" {
		language = "en"
	}
	body := strings.TrimSpace(text)
	if maxChars > 0 {
		body = utils.Truncate(body, maxChars)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(structureInstructions, maxVisuals, language))
	sb.WriteString("\n\nSOURCE MATERIAL:\n")
	sb.WriteString(body)
	return sb.String()
}

const tagInstructions = `Suggest between %d and %d short topic tags for the text below.
Reply with ONE JSON object: {"tags": [string]}. Tags are 1-3 words, in the language with code %q.

TEXT:
%s`

func TagPrompt(text, language string, min, max, maxChars int) string {
	if language == "" {
		language = "en"
	}
	body := strings.TrimSpace(text)
	if maxChars > 0 {
		body = utils.Truncate(body, maxChars)
	}
	return fmt.Sprintf(tagInstructions, min, max, language, body)
}
