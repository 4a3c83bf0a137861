package lexical

import (
	"ai-notetaking-pipeline/pkg/ai/structure"
)

// Builder turns a structure document into a Lexical editor state.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build walks sections in order. Placeholders without an image are dropped.
func (b *Builder) Build(doc *structure.Document, images map[string]Image) Root {
	var children []Node
	children = append(children, heading("h1", doc.Title))
	if doc.Summary != "" {
		children = append(children, quote(doc.Summary))
	}

	for _, section := range doc.Sections {
		children = append(children, heading("h2", section.Heading))
		for _, block := range section.Blocks {
			if node, ok := b.block(block, images); ok {
				children = append(children, node)
			}
		}
	}

	return Root{Root: Node{Type: "root", Version: 1, Direction: "ltr", Children: children}}
}

func (b *Builder) block(block structure.Block, images map[string]Image) (Node, bool) {
	switch block.Type {
	case structure.BlockHeading:
		return heading("h3", block.Text), true
	case structure.BlockBulletList:
		return list("bullet", "ul", block.Items), true
	case structure.BlockNumberedList:
		return list("number", "ol", block.Items), true
	case structure.BlockQuote, structure.BlockCallout:
		return quote(block.Text), true
	case structure.BlockCode:
		return Node{Type: "code", Version: 1, Children: []Node{text(block.Text, 0)}}, true
	case structure.BlockKeyTerm:
		return paragraph(text(block.Term, FormatBold), text(": "+block.Text, 0)), true
	case structure.BlockVisualPlaceholder:
		img, ok := images[block.PlaceholderId]
		if !ok || img.Src == "" {
			return Node{}, false
		}
		return image(block, img), true
	default:
		return paragraph(text(block.Text, 0)), true
	}
}

func text(s string, format int) Node {
	return Node{Type: "text", Version: 1, Text: s, Format: format, Mode: "normal"}
}

func paragraph(children ...Node) Node {
	return Node{Type: "paragraph", Version: 1, Direction: "ltr", Children: children}
}

func heading(tag, s string) Node {
	return Node{Type: "heading", Version: 1, Tag: tag, Direction: "ltr", Children: []Node{text(s, 0)}}
}

func quote(s string) Node {
	return Node{Type: "quote", Version: 1, Direction: "ltr", Children: []Node{text(s, 0)}}
}

func list(listType, tag string, items []string) Node {
	n := Node{Type: "list", Version: 1, ListType: listType, Tag: tag, Start: 1}
	for i, item := range items {
		n.Children = append(n.Children, Node{Type: "listitem", Version: 1, Value: i + 1, Children: []Node{text(item, 0)}})
	}
	return n
}

func image(block structure.Block, img Image) Node {
	n := Node{
		Type:          "image",
		Version:       1,
		Src:           img.Src,
		AltText:       img.AltText,
		Caption:       block.Caption,
		PlaceholderId: block.PlaceholderId,
	}
	if img.AttributionURL != "" {
		title := img.AttributionTitle
		if title == "" {
			title = "Source"
		}
		n.Children = []Node{{
			Type: "link", Version: 1, URL: img.AttributionURL, Rel: "noopener", Target: "_blank",
			Children: []Node{text(title, 0)},
		}}
	}
	return n
}
