package render

import (
	"strings"

	"ai-notetaking-pipeline/pkg/ai/structure"
	"ai-notetaking-pipeline/pkg/lexical"

	"github.com/goccy/go-json"
)

const (
	FormatHTML    = "html"
	FormatLexical = "lexical"
)

// Visual is the resolved image for one placeholder.
type Visual struct {
	ImageURL         string
	AltText          string
	AttributionURL   string
	AttributionTitle string
}

type Input struct {
	Doc      *structure.Document
	Language string
	Visuals  map[string]Visual
}

type Renderer interface {
	Format() string
	Render(in Input) (string, error)
}

type pageData struct {
	Doc      *structure.Document
	Language string
	Visuals  map[string]Visual
}

type blockData struct {
	Block  structure.Block
	Visual *Visual
}

// HTMLRenderer renders through the registry's "note" template.
type HTMLRenderer struct {
	registry *TemplateRegistry
}

func NewHTMLRenderer(registry *TemplateRegistry) *HTMLRenderer {
	return &HTMLRenderer{registry: registry}
}

func (h *HTMLRenderer) Format() string {
	return FormatHTML
}

func (h *HTMLRenderer) Render(in Input) (string, error) {
	if !h.registry.IsReady() {
		if err := h.registry.Load(); err != nil {
			return "", err
		}
	}
	var sb strings.Builder
	err := h.registry.Execute(&sb, "note", pageData{Doc: in.Doc, Language: in.Language, Visuals: in.Visuals})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// LexicalRenderer emits a Lexical editor state as JSON.
type LexicalRenderer struct {
	builder *lexical.Builder
}

func NewLexicalRenderer() *LexicalRenderer {
	return &LexicalRenderer{builder: lexical.NewBuilder()}
}

func (l *LexicalRenderer) Format() string {
	return FormatLexical
}

func (l *LexicalRenderer) Render(in Input) (string, error) {
	images := make(map[string]lexical.Image, len(in.Visuals))
	for id, v := range in.Visuals {
		if v.ImageURL == "" {
			continue
		}
		images[id] = lexical.Image{
			Src:              v.ImageURL,
			AltText:          v.AltText,
			AttributionURL:   v.AttributionURL,
			AttributionTitle: v.AttributionTitle,
		}
	}
	root := l.builder.Build(in.Doc, images)
	data, err := json.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// New picks a renderer by content format.
func New(format string, registry *TemplateRegistry) Renderer {
	if format == FormatLexical {
		return NewLexicalRenderer()
	}
	return NewHTMLRenderer(registry)
}
