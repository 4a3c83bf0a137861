package structure

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// TagReply is the JSON contract for tag derivation.
type TagReply struct {
	Tags []string `json:"tags" validate:"required,min=1,max=10,dive,required,max=40"`
}

// ParseTags decodes a tag reply and keeps between min and max distinct names.
func ParseTags(raw string, min, max int) ([]string, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	var reply TagReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := Validate(&reply); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var tags []string
	for _, t := range reply.Tags {
		name := strings.Join(strings.Fields(t), " ")
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, name)
	}
	if len(tags) < min {
		return nil, fmt.Errorf("schema validation: want at least %d tags, got %d", min, len(tags))
	}
	if max > 0 && len(tags) > max {
		tags = tags[:max]
	}
	return tags, nil
}
