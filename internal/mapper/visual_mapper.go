package mapper

import (
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/model"
)

type VisualMapper struct{}

func NewVisualMapper() *VisualMapper {
	return &VisualMapper{}
}

func (m *VisualMapper) ToEntity(v *model.Visual) *entity.Visual {
	if v == nil {
		return nil
	}

	var updatedAt *time.Time
	if !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		updatedAt = &t
	}

	return &entity.Visual{
		Id:               v.Id,
		SourceId:         v.SourceId,
		PlaceholderId:    v.PlaceholderId,
		Description:      v.Description,
		SearchQuery:      v.SearchQuery,
		Status:           entity.VisualStatus(v.Status),
		ImageUrl:         v.ImageUrl,
		AltText:          v.AltText,
		AttributionUrl:   v.AttributionUrl,
		AttributionTitle: v.AttributionTitle,
		Score:            v.Score,
		ErrorMessage:     v.ErrorMessage,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *VisualMapper) ToModel(v *entity.Visual) *model.Visual {
	if v == nil {
		return nil
	}

	var updatedAt time.Time
	if v.UpdatedAt != nil {
		updatedAt = *v.UpdatedAt
	}

	return &model.Visual{
		Id:               v.Id,
		SourceId:         v.SourceId,
		PlaceholderId:    v.PlaceholderId,
		Description:      v.Description,
		SearchQuery:      v.SearchQuery,
		Status:           string(v.Status),
		ImageUrl:         v.ImageUrl,
		AltText:          v.AltText,
		AttributionUrl:   v.AttributionUrl,
		AttributionTitle: v.AttributionTitle,
		Score:            v.Score,
		ErrorMessage:     v.ErrorMessage,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *VisualMapper) ToEntities(visuals []*model.Visual) []*entity.Visual {
	entities := make([]*entity.Visual, len(visuals))
	for i, v := range visuals {
		entities[i] = m.ToEntity(v)
	}
	return entities
}
