package implementation

import (
	"context"
	"errors"
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/mapper"
	"ai-notetaking-pipeline/internal/model"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/scope"
	"ai-notetaking-pipeline/internal/repository/specification"
	"ai-notetaking-pipeline/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.JobMapper
}

func NewJobRepository(db *gorm.DB) contract.JobRepository {
	return &JobRepositoryImpl{
		db:     db,
		mapper: mapper.NewJobMapper(),
	}
}

func (r *JobRepositoryImpl) Create(ctx context.Context, job *entity.Job) error {
	if job.Id == uuid.Nil {
		job.Id = uuid.New()
	}
	m := r.mapper.ToModel(job)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return contract.ErrDuplicate
		}
		return err
	}
	*job = *r.mapper.ToEntity(m)
	return nil
}

func (r *JobRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	return r.findOne(ctx, specification.ByID{ID: id})
}

func (r *JobRepositoryImpl) FindByDedupeKey(ctx context.Context, key string) (*entity.Job, error) {
	return r.findOne(ctx, specification.ByDedupeKey{Key: key})
}

func (r *JobRepositoryImpl) findOne(ctx context.Context, specs ...specification.Specification) (*entity.Job, error) {
	var m model.Job
	if err := applySpecifications(r.db.WithContext(ctx), specs...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *JobRepositoryImpl) Update(ctx context.Context, id uuid.UUID, update contract.JobUpdate) error {
	updates := map[string]interface{}{
		"status":      string(update.Status),
		"attempt":     update.Attempt,
		"last_error":  update.LastError,
		"run_at":      update.RunAt,
		"finished_at": update.FinishedAt,
	}
	if update.ReleaseDedupe {
		updates["dedupe_key"] = nil
	}
	res := r.db.WithContext(ctx).Model(&model.Job{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func (r *JobRepositoryImpl) List(ctx context.Context, filter contract.JobFilter) ([]*entity.Job, error) {
	var specs []specification.Specification
	if filter.Status != "" {
		specs = append(specs, specification.Filter("status", string(filter.Status)))
	}
	if filter.Name != "" {
		specs = append(specs, specification.Filter("name", filter.Name))
	}
	specs = append(specs, specification.Pagination{Limit: filter.Limit, Offset: filter.Offset})

	var models []*model.Job
	query := applySpecifications(r.db.WithContext(ctx), specs...).Scopes(scope.OrderByCreatedDesc)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *JobRepositoryImpl) CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Job{}).
		Select("status, count(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[entity.JobStatus]int64, len(rows))
	for _, row := range rows {
		out[entity.JobStatus(row.Status)] = row.Total
	}
	return out, nil
}

func (r *JobRepositoryImpl) DeleteFinishedBefore(ctx context.Context, status entity.JobStatus, before time.Time) (int64, error) {
	res := applySpecifications(r.db.WithContext(ctx),
		specification.Filter("status", string(status)),
		specification.FinishedBefore{Before: before},
	).Delete(&model.Job{})
	return res.RowsAffected, res.Error
}
