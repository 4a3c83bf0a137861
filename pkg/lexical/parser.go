package lexical

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Parser handles Lexical JSON to Markdown conversion
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// Parse converts a Lexical JSON string to Markdown
func (p *Parser) Parse(jsonContent string) (string, error) {
	var root Root
	if err := json.Unmarshal([]byte(jsonContent), &root); err != nil {
		return "", fmt.Errorf("failed to parse lexical json: %w", err)
	}

	var sb strings.Builder
	p.walkNode(root.Root, &sb, 0)
	return sb.String(), nil
}

// ParseContent returns Markdown for Lexical content and the input unchanged
// for anything else (HTML notes, plain text, broken JSON).
func ParseContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, `{"root":`) {
		return content
	}

	md, err := NewParser().Parse(trimmed)
	if err != nil {
		return content
	}
	return md
}

func (p *Parser) walkNode(node Node, sb *strings.Builder, depth int) {
	switch node.Type {
	case "root":
		for _, child := range node.Children {
			p.walkNode(child, sb, depth)
			sb.WriteString("\n")
		}

	case "paragraph":
		p.inline(node.Children, sb)
		sb.WriteString("\n")

	case "heading":
		level := 1
		if len(node.Tag) == 2 && node.Tag[0] == 'h' {
			level = int(node.Tag[1] - '0')
		}
		sb.WriteString(strings.Repeat("#", level) + " ")
		p.inline(node.Children, sb)
		sb.WriteString("\n")

	case "quote":
		sb.WriteString("> ")
		p.inline(node.Children, sb)
		sb.WriteString("\n")

	case "code":
		sb.WriteString("```" + node.Language + "\n")
		p.inline(node.Children, sb)
		sb.WriteString("\n```\n")

	case "text":
		p.handleText(node, sb)

	case "list":
		p.handleList(node, sb, depth)

	case "link":
		sb.WriteString("[")
		p.inline(node.Children, sb)
		sb.WriteString(fmt.Sprintf("](%s)", node.URL))

	case "image":
		sb.WriteString(fmt.Sprintf("![%s](%s)", node.AltText, node.Src))
		if node.Caption != "" || len(node.Children) > 0 {
			sb.WriteString("\n_")
			sb.WriteString(node.Caption)
			if node.Caption != "" && len(node.Children) > 0 {
				sb.WriteString(" ")
			}
			p.inline(node.Children, sb)
			sb.WriteString("_")
		}
		sb.WriteString("\n")

	case "horizontalrule":
		sb.WriteString("---\n")

	default:
		for _, child := range node.Children {
			p.walkNode(child, sb, depth)
		}
	}
}

func (p *Parser) inline(children []Node, sb *strings.Builder) {
	for _, child := range children {
		p.walkNode(child, sb, 0)
	}
}

func (p *Parser) handleText(node Node, sb *strings.Builder) {
	fmtInt := 0
	switch f := node.Format.(type) {
	case float64:
		fmtInt = int(f)
	case int:
		fmtInt = f
	}

	var open, closing []string
	if fmtInt&FormatCode != 0 {
		open, closing = append(open, "`"), append([]string{"`"}, closing...)
	}
	if fmtInt&FormatBold != 0 {
		open, closing = append(open, "**"), append([]string{"**"}, closing...)
	}
	if fmtInt&FormatItalic != 0 {
		open, closing = append(open, "_"), append([]string{"_"}, closing...)
	}
	if fmtInt&FormatUnderline != 0 {
		open, closing = append(open, "<u>"), append([]string{"</u>"}, closing...)
	}
	if fmtInt&FormatStrikethrough != 0 {
		open, closing = append(open, "~~"), append([]string{"~~"}, closing...)
	}

	sb.WriteString(strings.Join(open, ""))
	sb.WriteString(node.Text)
	sb.WriteString(strings.Join(closing, ""))
}

func (p *Parser) handleList(node Node, sb *strings.Builder, depth int) {
	index := 1
	if node.Start > 0 {
		index = node.Start
	}

	for _, child := range node.Children {
		if child.Type != "listitem" {
			continue
		}
		sb.WriteString(strings.Repeat("  ", depth))
		if node.ListType == "number" {
			sb.WriteString(fmt.Sprintf("%d. ", index))
			index++
		} else {
			sb.WriteString("- ")
		}

		for _, grandChild := range child.Children {
			if grandChild.Type == "list" {
				sb.WriteString("\n")
				p.handleList(grandChild, sb, depth+1)
			} else {
				p.walkNode(grandChild, sb, depth)
			}
		}
		sb.WriteString("\n")
	}
}
