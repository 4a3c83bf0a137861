package memory

import (
	"ai-notetaking-pipeline/internal/entity"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func cloneSource(s *entity.Source) *entity.Source {
	c := *s
	c.ExtractedText = cloneString(s.ExtractedText)
	c.ProcessingError = cloneString(s.ProcessingError)
	c.Metadata = cloneMetadata(s.Metadata)
	c.Visuals = nil
	return &c
}

func cloneVisual(v *entity.Visual) *entity.Visual {
	c := *v
	c.SearchQuery = cloneString(v.SearchQuery)
	c.ImageUrl = cloneString(v.ImageUrl)
	c.AltText = cloneString(v.AltText)
	c.AttributionUrl = cloneString(v.AttributionUrl)
	c.AttributionTitle = cloneString(v.AttributionTitle)
	c.ErrorMessage = cloneString(v.ErrorMessage)
	if v.Score != nil {
		score := *v.Score
		c.Score = &score
	}
	return &c
}

func cloneNote(n *entity.Note) *entity.Note {
	c := *n
	c.TagIds = append([]uuid.UUID(nil), n.TagIds...)
	return &c
}

func cloneJob(j *entity.Job) *entity.Job {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	c.DedupeKey = cloneString(j.DedupeKey)
	c.LastError = cloneString(j.LastError)
	if j.RunAt != nil {
		t := *j.RunAt
		c.RunAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneMetadata deep-copies through JSON, matching what a jsonb round trip does.
func cloneMetadata(meta map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if len(meta) == 0 {
		return out
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}
