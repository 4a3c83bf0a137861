package structure

// BlockType tags each block of generated content. Downstream stages trust the
// tag: only visual_placeholder blocks are fanned out to image search.
type BlockType string

const (
	BlockParagraph         BlockType = "paragraph"
	BlockHeading           BlockType = "heading"
	BlockBulletList        BlockType = "bullet_list"
	BlockNumberedList      BlockType = "numbered_list"
	BlockQuote             BlockType = "quote"
	BlockCode              BlockType = "code"
	BlockKeyTerm           BlockType = "key_term"
	BlockCallout           BlockType = "callout"
	BlockVisualPlaceholder BlockType = "visual_placeholder"
)

// Document is the JSON contract the text-generation stage must satisfy.
type Document struct {
	Title               string              `json:"title" validate:"required,max=300"`
	Summary             string              `json:"summary" validate:"required"`
	Language            string              `json:"language,omitempty" validate:"omitempty,max=16"`
	Sections            []Section           `json:"sections" validate:"required,min=1,dive"`
	VisualOpportunities []VisualOpportunity `json:"visualOpportunities" validate:"omitempty,max=20,dive"`
}

type Section struct {
	Heading string  `json:"heading" validate:"required"`
	Blocks  []Block `json:"blocks" validate:"required,min=1,dive"`
}

type Block struct {
	Type          BlockType `json:"type" validate:"required,oneof=paragraph heading bullet_list numbered_list quote code key_term callout visual_placeholder"`
	Text          string    `json:"text,omitempty"`
	Items         []string  `json:"items,omitempty" validate:"required_if=Type bullet_list,required_if=Type numbered_list"`
	Term          string    `json:"term,omitempty" validate:"required_if=Type key_term"`
	PlaceholderId string    `json:"placeholderId,omitempty" validate:"required_if=Type visual_placeholder"`
	Caption       string    `json:"caption,omitempty"`
}

// VisualOpportunity is a place where an illustration would help. Entries
// without a placeholder id or description are ignored at fan-out.
type VisualOpportunity struct {
	PlaceholderId string `json:"placeholderId"`
	Description   string `json:"description"`
	SearchQuery   string `json:"searchQuery,omitempty"`
}

func (v VisualOpportunity) Usable() bool {
	return v.PlaceholderId != "" && v.Description != ""
}

// Placeholders returns the ids of every visual_placeholder block in order.
func (d *Document) Placeholders() []string {
	var ids []string
	for _, s := range d.Sections {
		for _, b := range s.Blocks {
			if b.Type == BlockVisualPlaceholder && b.PlaceholderId != "" {
				ids = append(ids, b.PlaceholderId)
			}
		}
	}
	return ids
}

// UsableOpportunities filters out entries the fan-out cannot act on.
func (d *Document) UsableOpportunities() []VisualOpportunity {
	var out []VisualOpportunity
	for _, v := range d.VisualOpportunities {
		if v.Usable() {
			out = append(out, v)
		}
	}
	return out
}
