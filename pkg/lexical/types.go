package lexical

// Root is the top-level Lexical editor state
type Root struct {
	Root Node `json:"root"`
}

// Node represents any node in the Lexical tree
type Node struct {
	Type     string `json:"type"`
	Version  int    `json:"version"`
	Children []Node `json:"children,omitempty"`

	// Text specific
	Text   string      `json:"text,omitempty"`
	Format interface{} `json:"format,omitempty"` // int bitmask on text, alignment string on blocks
	Mode   string      `json:"mode,omitempty"`
	Detail int         `json:"detail,omitempty"`

	// Element specific
	Direction string `json:"direction,omitempty"`
	Indent    int    `json:"indent,omitempty"`
	Tag       string `json:"tag,omitempty"` // h1..h6 on headings, ul/ol on lists

	// Link specific
	URL    string `json:"url,omitempty"`
	Rel    string `json:"rel,omitempty"`
	Target string `json:"target,omitempty"`

	// List specific
	ListType string `json:"listType,omitempty"` // bullet, number
	Start    int    `json:"start,omitempty"`
	Value    int    `json:"value,omitempty"`

	// Code specific
	Language string `json:"language,omitempty"`

	// Image specific
	Src           string `json:"src,omitempty"`
	AltText       string `json:"altText,omitempty"`
	Caption       string `json:"caption,omitempty"`
	PlaceholderId string `json:"placeholderId,omitempty"`
}

// Text format bitmask
const (
	FormatBold          = 1
	FormatItalic        = 2
	FormatStrikethrough = 4
	FormatUnderline     = 8
	FormatCode          = 16
)

// Image is a resolved visual handed to the builder.
type Image struct {
	Src              string
	AltText          string
	AttributionURL   string
	AttributionTitle string
}
