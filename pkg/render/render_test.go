package render

import (
	"strings"
	"testing"
	"testing/fstest"

	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/lexical"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *structure.Document {
	return &structure.Document{
		Title:   "Cells <basics>",
		Summary: "Energy in cells.",
		Sections: []structure.Section{{
			Heading: "Overview",
			Blocks: []structure.Block{
				{Type: structure.BlockParagraph, Text: "The mitochondria is the powerhouse of the cell."},
				{Type: structure.BlockBulletList, Items: []string{"ATP", "Respiration"}},
				{Type: structure.BlockVisualPlaceholder, PlaceholderId: "visual-1", Caption: "Mitochondrion"},
				{Type: structure.BlockVisualPlaceholder, PlaceholderId: "visual-2"},
			},
		}},
	}
}

func sampleVisuals() map[string]Visual {
	return map[string]Visual{
		"visual-1": {ImageURL: "https://img/1", AltText: "mito", AttributionURL: "https://u/1", AttributionTitle: "Photo by Ana"},
		"visual-2": {},
	}
}

func TestRegistryNotReadyUntilLoaded(t *testing.T) {
	r := NewTemplateRegistry(nil, "")
	assert.False(t, r.IsReady())
	assert.ErrorIs(t, r.Execute(&strings.Builder{}, "note", nil), ErrTemplatesNotLoaded)
	require.NoError(t, r.Load())
	assert.True(t, r.IsReady())
}

func TestRegistryReportsBadTemplates(t *testing.T) {
	fsys := fstest.MapFS{"broken.tmpl": {Data: []byte(`{{define "note"}}{{if}}{{end}}`)}}
	r := NewTemplateRegistry(fsys, "*.tmpl")
	assert.Error(t, r.Load())
	assert.False(t, r.IsReady())
}

func TestHTMLRenderer(t *testing.T) {
	out, err := NewHTMLRenderer(NewTemplateRegistry(nil, "")).Render(Input{Doc: sampleDoc(), Language: "en", Visuals: sampleVisuals()})
	require.NoError(t, err)

	assert.Contains(t, out, "<h1>Cells &lt;basics&gt;</h1>")
	assert.Contains(t, out, "<li>ATP</li><li>Respiration</li>")
	assert.Contains(t, out, `<img src="https://img/1" alt="mito"`)
	assert.Contains(t, out, "Photo by Ana</a>")
	// A placeholder without an image renders nothing.
	assert.NotContains(t, out, `data-placeholder="visual-2"`)
}

func TestLexicalRenderer(t *testing.T) {
	out, err := New(FormatLexical, nil).Render(Input{Doc: sampleDoc(), Visuals: sampleVisuals()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `{"root":`))

	md := lexical.ParseContent(out)
	assert.Contains(t, md, "The mitochondria is the powerhouse of the cell.")
	assert.Contains(t, md, "- ATP")
	assert.Contains(t, md, "![mito](https://img/1)")
}
