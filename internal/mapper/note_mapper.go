package mapper

import (
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/model"

	"github.com/google/uuid"
)

type NoteMapper struct{}

func NewNoteMapper() *NoteMapper {
	return &NoteMapper{}
}

func (m *NoteMapper) ToEntity(n *model.Note) *entity.Note {
	if n == nil {
		return nil
	}

	var updatedAt *time.Time
	if !n.UpdatedAt.IsZero() {
		t := n.UpdatedAt
		updatedAt = &t
	}

	var tagIds []uuid.UUID
	for _, t := range n.Tags {
		tagIds = append(tagIds, t.Id)
	}

	return &entity.Note{
		Id:            n.Id,
		SourceId:      n.SourceId,
		UserId:        n.UserId,
		Title:         n.Title,
		Summary:       n.Summary,
		Content:       n.Content,
		ContentFormat: entity.ContentFormat(n.ContentFormat),
		LanguageCode:  n.LanguageCode,
		TagIds:        tagIds,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

func (m *NoteMapper) ToModel(n *entity.Note) *model.Note {
	if n == nil {
		return nil
	}

	var updatedAt time.Time
	if n.UpdatedAt != nil {
		updatedAt = *n.UpdatedAt
	}

	return &model.Note{
		Id:            n.Id,
		SourceId:      n.SourceId,
		UserId:        n.UserId,
		Title:         n.Title,
		Summary:       n.Summary,
		Content:       n.Content,
		ContentFormat: string(n.ContentFormat),
		LanguageCode:  n.LanguageCode,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     updatedAt,
	}
}

type TagMapper struct{}

func NewTagMapper() *TagMapper {
	return &TagMapper{}
}

func (m *TagMapper) ToEntity(t *model.Tag) *entity.Tag {
	if t == nil {
		return nil
	}
	return &entity.Tag{Id: t.Id, Name: t.Name, Key: t.NameKey, CreatedAt: t.CreatedAt}
}

func (m *TagMapper) ToModel(t *entity.Tag) *model.Tag {
	if t == nil {
		return nil
	}
	return &model.Tag{Id: t.Id, Name: t.Name, NameKey: t.Key, CreatedAt: t.CreatedAt}
}

func (m *TagMapper) ToEntities(tags []*model.Tag) []*entity.Tag {
	entities := make([]*entity.Tag, len(tags))
	for i, t := range tags {
		entities[i] = m.ToEntity(t)
	}
	return entities
}
