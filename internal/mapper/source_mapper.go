package mapper

import (
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/model"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

type SourceMapper struct {
	visuals *VisualMapper
}

func NewSourceMapper() *SourceMapper {
	return &SourceMapper{visuals: NewVisualMapper()}
}

func (m *SourceMapper) ToEntity(s *model.Source) *entity.Source {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	var visuals []*entity.Visual
	if len(s.Visuals) > 0 {
		visuals = make([]*entity.Visual, len(s.Visuals))
		for i := range s.Visuals {
			visuals[i] = m.visuals.ToEntity(&s.Visuals[i])
		}
	}

	return &entity.Source{
		Id:              s.Id,
		UserId:          s.UserId,
		Kind:            entity.SourceKind(s.Kind),
		OriginalUrl:     s.OriginalUrl,
		StoragePath:     s.StoragePath,
		MimeType:        s.MimeType,
		ExtractedText:   s.ExtractedText,
		LanguageCode:    s.LanguageCode,
		Status:          entity.ProcessingStatus(s.Status),
		Stage:           entity.ProcessingStage(s.Stage),
		ProcessingError: s.ProcessingError,
		Metadata:        DecodeMetadata(s.Metadata),
		Visuals:         visuals,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *SourceMapper) ToModel(s *entity.Source) *model.Source {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.Source{
		Id:              s.Id,
		UserId:          s.UserId,
		Kind:            string(s.Kind),
		OriginalUrl:     s.OriginalUrl,
		StoragePath:     s.StoragePath,
		MimeType:        s.MimeType,
		ExtractedText:   s.ExtractedText,
		LanguageCode:    s.LanguageCode,
		Status:          string(s.Status),
		Stage:           string(s.Stage),
		ProcessingError: s.ProcessingError,
		Metadata:        EncodeMetadata(s.Metadata),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *SourceMapper) ToEntities(sources []*model.Source) []*entity.Source {
	entities := make([]*entity.Source, len(sources))
	for i, s := range sources {
		entities[i] = m.ToEntity(s)
	}
	return entities
}

// DecodeMetadata never returns nil so handlers can read keys without checks.
func DecodeMetadata(raw datatypes.JSON) map[string]interface{} {
	out := map[string]interface{}{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func EncodeMetadata(meta map[string]interface{}) datatypes.JSON {
	if len(meta) == 0 {
		return datatypes.JSON("{}")
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}
