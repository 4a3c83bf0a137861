package render

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"sync"

	"ai-notetaking-pipeline/pkg/ai/structure"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

var ErrTemplatesNotLoaded = errors.New("templates not loaded")

// TemplateRegistry owns the compiled note templates. It is built once and
// injected into the assembler; Load is explicit and safe to call repeatedly.
type TemplateRegistry struct {
	fsys    fs.FS
	pattern string

	mu        sync.RWMutex
	templates *template.Template
}

// NewTemplateRegistry reads templates matching pattern from fsys. A nil fsys
// uses the built-in templates.
func NewTemplateRegistry(fsys fs.FS, pattern string) *TemplateRegistry {
	if fsys == nil {
		fsys = defaultTemplates
		pattern = "templates/*.tmpl"
	}
	return &TemplateRegistry{fsys: fsys, pattern: pattern}
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"str": func(t structure.BlockType) string { return string(t) },
		"blockData": func(page pageData, b structure.Block) blockData {
			bd := blockData{Block: b}
			if v, ok := page.Visuals[b.PlaceholderId]; ok && v.ImageURL != "" {
				bd.Visual = &v
			}
			return bd
		},
	}
}

func (r *TemplateRegistry) Load() error {
	tmpl, err := template.New("root").Funcs(funcMap()).ParseFS(r.fsys, r.pattern)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()
	return nil
}

func (r *TemplateRegistry) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates != nil
}

func (r *TemplateRegistry) Execute(w io.Writer, name string, data interface{}) error {
	r.mu.RLock()
	tmpl := r.templates
	r.mu.RUnlock()
	if tmpl == nil {
		return ErrTemplatesNotLoaded
	}
	return tmpl.ExecuteTemplate(w, name, data)
}
