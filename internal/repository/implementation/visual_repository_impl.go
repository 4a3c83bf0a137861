package implementation

import (
	"context"
	"errors"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/mapper"
	"ai-notetaking-pipeline/internal/model"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/scope"
	"ai-notetaking-pipeline/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VisualRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VisualMapper
}

func NewVisualRepository(db *gorm.DB) contract.VisualRepository {
	return &VisualRepositoryImpl{
		db:     db,
		mapper: mapper.NewVisualMapper(),
	}
}

func (r *VisualRepositoryImpl) CreateIfAbsent(ctx context.Context, visual *entity.Visual) (bool, error) {
	if visual.Id == uuid.Nil {
		visual.Id = uuid.New()
	}
	if visual.Status == "" {
		visual.Status = entity.VisualStatusPending
	}
	m := r.mapper.ToModel(visual)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "placeholder_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		*visual = *r.mapper.ToEntity(m)
		return true, nil
	}

	var existing model.Visual
	err := applySpecifications(r.db.WithContext(ctx),
		specification.BySourceID{SourceID: visual.SourceId},
		specification.Filter("placeholder_id", visual.PlaceholderId),
	).First(&existing).Error
	if err != nil {
		return false, err
	}
	*visual = *r.mapper.ToEntity(&existing)
	return false, nil
}

func (r *VisualRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Visual, error) {
	var m model.Visual
	if err := r.db.WithContext(ctx).Scopes(specification.ByID{ID: id}.Apply).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *VisualRepositoryImpl) FindBySource(ctx context.Context, sourceId uuid.UUID) ([]*entity.Visual, error) {
	var models []*model.Visual
	query := applySpecifications(r.db.WithContext(ctx), specification.BySourceID{SourceID: sourceId}).
		Scopes(scope.OrderByCreatedAsc)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *VisualRepositoryImpl) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.nonTerminal(ctx, id).Update("status", string(entity.VisualStatusProcessing))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VisualRepositoryImpl) Finish(ctx context.Context, id uuid.UUID, outcome entity.VisualOutcome) (bool, error) {
	updates := map[string]interface{}{
		"status":            string(outcome.Status),
		"image_url":         nullable(outcome.ImageUrl),
		"alt_text":          nullable(outcome.AltText),
		"attribution_url":   nullable(outcome.AttributionUrl),
		"attribution_title": nullable(outcome.AttributionTitle),
		"error_message":     nullable(outcome.ErrorMessage),
	}
	if outcome.Status == entity.VisualStatusCompleted {
		updates["score"] = outcome.Score
	}
	res := r.nonTerminal(ctx, id).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VisualRepositoryImpl) CountNonTerminal(ctx context.Context, sourceId uuid.UUID) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.Visual{}),
		specification.BySourceID{SourceID: sourceId},
		specification.StatusIn{Statuses: nonTerminalVisualLabels()},
	).Count(&count).Error
	return count, err
}

func (r *VisualRepositoryImpl) nonTerminal(ctx context.Context, id uuid.UUID) *gorm.DB {
	return applySpecifications(r.db.WithContext(ctx).Model(&model.Visual{}),
		specification.ByID{ID: id},
		specification.StatusIn{Statuses: nonTerminalVisualLabels()},
	)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
