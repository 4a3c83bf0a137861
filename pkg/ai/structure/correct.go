package structure

// Correction reports what AutoCorrect changed and what it could not fix.
type Correction struct {
	Retyped    []string
	Unresolved []string
}

// AutoCorrect retypes blocks that carry an opportunity's placeholder id but
// were not tagged visual_placeholder. Opportunity ids that appear in no block
// at all are returned as unresolved so the caller can record them.
func AutoCorrect(doc *Document) Correction {
	var c Correction
	expected := map[string]bool{}
	for _, v := range doc.UsableOpportunities() {
		expected[v.PlaceholderId] = true
	}

	seen := map[string]bool{}
	for si := range doc.Sections {
		blocks := doc.Sections[si].Blocks
		for bi := range blocks {
			id := blocks[bi].PlaceholderId
			if id == "" {
				continue
			}
			seen[id] = true
			if expected[id] && blocks[bi].Type != BlockVisualPlaceholder {
				blocks[bi].Type = BlockVisualPlaceholder
				c.Retyped = append(c.Retyped, id)
			}
		}
	}

	for _, v := range doc.UsableOpportunities() {
		if !seen[v.PlaceholderId] {
			c.Unresolved = append(c.Unresolved, v.PlaceholderId)
		}
	}
	return c
}
