package mapper

import (
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/model"

	"gorm.io/datatypes"
)

type JobMapper struct{}

func NewJobMapper() *JobMapper {
	return &JobMapper{}
}

func (m *JobMapper) ToEntity(j *model.Job) *entity.Job {
	if j == nil {
		return nil
	}

	var updatedAt *time.Time
	if !j.UpdatedAt.IsZero() {
		t := j.UpdatedAt
		updatedAt = &t
	}

	return &entity.Job{
		Id:          j.Id,
		Name:        j.Name,
		Payload:     []byte(j.Payload),
		DedupeKey:   j.DedupeKey,
		Status:      entity.JobStatus(j.Status),
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		RunAt:       j.RunAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   updatedAt,
		FinishedAt:  j.FinishedAt,
	}
}

func (m *JobMapper) ToModel(j *entity.Job) *model.Job {
	if j == nil {
		return nil
	}

	var updatedAt time.Time
	if j.UpdatedAt != nil {
		updatedAt = *j.UpdatedAt
	}

	payload := datatypes.JSON(j.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}

	return &model.Job{
		Id:          j.Id,
		Name:        j.Name,
		Payload:     payload,
		DedupeKey:   j.DedupeKey,
		Status:      string(j.Status),
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		LastError:   j.LastError,
		RunAt:       j.RunAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   updatedAt,
		FinishedAt:  j.FinishedAt,
	}
}

func (m *JobMapper) ToEntities(jobs []*model.Job) []*entity.Job {
	entities := make([]*entity.Job, len(jobs))
	for i, j := range jobs {
		entities[i] = m.ToEntity(j)
	}
	return entities
}
