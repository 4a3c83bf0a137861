package implementation

import (
	"context"
	"errors"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/mapper"
	"ai-notetaking-pipeline/internal/model"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SourceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SourceMapper
}

func NewSourceRepository(db *gorm.DB) contract.SourceRepository {
	return &SourceRepositoryImpl{
		db:     db,
		mapper: mapper.NewSourceMapper(),
	}
}

func (r *SourceRepositoryImpl) Create(ctx context.Context, source *entity.Source) error {
	if source.Id == uuid.Nil {
		source.Id = uuid.New()
	}
	m := r.mapper.ToModel(source)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*source = *r.mapper.ToEntity(m)
	return nil
}

func (r *SourceRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Select("Visuals").Delete(&model.Source{Id: id}).Error
}

func (r *SourceRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Source, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *SourceRepositoryImpl) FindByIdWithVisuals(ctx context.Context, id uuid.UUID) (*entity.Source, error) {
	return r.findOne(ctx,
		specification.ByID{ID: id},
		specification.Preload{
			Association: "Visuals",
			Specs:       []specification.Specification{specification.OrderBy{Field: "created_at"}},
		},
	)
}

func (r *SourceRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.Source, error) {
	var m model.Source
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *SourceRepositoryImpl) TransitionStage(ctx context.Context, id uuid.UUID, t entity.Transition, status entity.ProcessingStatus) (bool, error) {
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Source{}),
		specification.ByID{ID: id},
		specification.StageIn{Stages: stageLabels(t.From())},
	)
	res := query.Updates(map[string]interface{}{
		"stage":            t.To().String(),
		"status":           string(status),
		"processing_error": nil,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SourceRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, message string, stages ...entity.ProcessingStage) (bool, error) {
	specs := []specification.Specification{specification.ByID{ID: id}}
	if len(stages) > 0 {
		specs = append(specs, specification.StageIn{Stages: stageLabels(stages)})
	}
	res := applySpecifications(r.db.WithContext(ctx).Model(&model.Source{}), specs...).
		Updates(map[string]interface{}{
			"status":           string(entity.ProcessingStatusFailed),
			"processing_error": message,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SourceRepositoryImpl) SaveResult(ctx context.Context, id uuid.UUID, result entity.SourceResult) error {
	updates := map[string]interface{}{
		"extracted_text": result.ExtractedText,
		"metadata":       mergeJSON(result.Metadata),
	}
	if result.LanguageCode != "" {
		updates["language_code"] = result.LanguageCode
	}
	return r.update(ctx, id, updates)
}

func (r *SourceRepositoryImpl) MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) error {
	return r.update(ctx, id, map[string]interface{}{"metadata": mergeJSON(patch)})
}

func (r *SourceRepositoryImpl) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Source{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}

// mergeJSON patches the jsonb column in place so concurrent writers of
// different keys do not overwrite each other.
func mergeJSON(patch map[string]interface{}) interface{} {
	return gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?::jsonb", string(mapper.EncodeMetadata(patch)))
}
