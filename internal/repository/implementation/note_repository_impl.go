package implementation

import (
	"context"
	"errors"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/mapper"
	"ai-notetaking-pipeline/internal/model"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/specification"
	"ai-notetaking-pipeline/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NoteRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteMapper
}

func NewNoteRepository(db *gorm.DB) contract.NoteRepository {
	return &NoteRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteMapper(),
	}
}

func (r *NoteRepositoryImpl) Create(ctx context.Context, note *entity.Note) error {
	if note.Id == uuid.Nil {
		note.Id = uuid.New()
	}
	m := r.mapper.ToModel(note)
	if err := r.db.WithContext(ctx).Omit("Tags").Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return contract.ErrDuplicate
		}
		return err
	}
	tagIds := note.TagIds
	*note = *r.mapper.ToEntity(m)
	note.TagIds = tagIds
	return nil
}

func (r *NoteRepositoryImpl) FindBySource(ctx context.Context, sourceId uuid.UUID) (*entity.Note, error) {
	var m model.Note
	query := applySpecifications(r.db.WithContext(ctx),
		specification.BySourceID{SourceID: sourceId},
		specification.Preload{Association: "Tags"},
	)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *NoteRepositoryImpl) LinkTags(ctx context.Context, noteId uuid.UUID, tagIds []uuid.UUID) error {
	if len(tagIds) == 0 {
		return nil
	}
	links := make([]model.NoteTag, len(tagIds))
	for i, id := range tagIds {
		links[i] = model.NoteTag{NoteId: noteId, TagId: id}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}

func (r *NoteRepositoryImpl) CountBySource(ctx context.Context, sourceId uuid.UUID) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.Note{}),
		specification.BySourceID{SourceID: sourceId},
	).Count(&count).Error
	return count, err
}

type TagRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TagMapper
}

func NewTagRepository(db *gorm.DB) contract.TagRepository {
	return &TagRepositoryImpl{
		db:     db,
		mapper: mapper.NewTagMapper(),
	}
}

func (r *TagRepositoryImpl) Create(ctx context.Context, tag *entity.Tag) error {
	if tag.Id == uuid.Nil {
		tag.Id = uuid.New()
	}
	tag.Key = entity.TagKey(tag.Name)
	m := r.mapper.ToModel(tag)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return contract.ErrDuplicate
		}
		return err
	}
	*tag = *r.mapper.ToEntity(m)
	return nil
}

func (r *TagRepositoryImpl) FindByName(ctx context.Context, name string) (*entity.Tag, error) {
	var m model.Tag
	query := applySpecifications(r.db.WithContext(ctx), specification.TagKeyIn{Names: []string{name}})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TagRepositoryImpl) FindByNames(ctx context.Context, names []string) ([]*entity.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var models []*model.Tag
	query := applySpecifications(r.db.WithContext(ctx), specification.TagKeyIn{Names: names})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *TagRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Tag{}).Count(&count).Error
	return count, err
}
