package memory

import (
	"context"
	"sort"
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

type jobRepository struct {
	uow *UnitOfWork
}

func (r *jobRepository) Create(ctx context.Context, job *entity.Job) error {
	return r.uow.do(func(s *state) error {
		if job.DedupeKey != nil {
			for _, j := range s.jobs {
				if j.DedupeKey != nil && *j.DedupeKey == *job.DedupeKey {
					return contract.ErrDuplicate
				}
			}
		}
		if job.Id == uuid.Nil {
			job.Id = uuid.New()
		}
		if _, ok := s.jobs[job.Id]; ok {
			return contract.ErrDuplicate
		}
		job.CreatedAt = time.Now()
		s.jobs[job.Id] = cloneJob(job)
		return nil
	})
}

func (r *jobRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var out *entity.Job
	err := r.uow.do(func(s *state) error {
		if j, ok := s.jobs[id]; ok {
			out = cloneJob(j)
		}
		return nil
	})
	return out, err
}

func (r *jobRepository) FindByDedupeKey(ctx context.Context, key string) (*entity.Job, error) {
	var out *entity.Job
	err := r.uow.do(func(s *state) error {
		for _, j := range s.jobs {
			if j.DedupeKey != nil && *j.DedupeKey == key {
				out = cloneJob(j)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *jobRepository) Update(ctx context.Context, id uuid.UUID, update contract.JobUpdate) error {
	return r.uow.do(func(s *state) error {
		j, ok := s.jobs[id]
		if !ok {
			return contract.ErrNotFound
		}
		j.Status = update.Status
		j.Attempt = update.Attempt
		j.LastError = cloneString(update.LastError)
		j.RunAt = update.RunAt
		j.FinishedAt = update.FinishedAt
		if update.ReleaseDedupe {
			j.DedupeKey = nil
		}
		touch(&j.UpdatedAt)
		return nil
	})
}

func (r *jobRepository) List(ctx context.Context, filter contract.JobFilter) ([]*entity.Job, error) {
	var out []*entity.Job
	err := r.uow.do(func(s *state) error {
		for _, j := range s.jobs {
			if filter.Status != "" && j.Status != filter.Status {
				continue
			}
			if filter.Name != "" && j.Name != filter.Name {
				continue
			}
			out = append(out, cloneJob(j))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *jobRepository) CountByStatus(ctx context.Context) (map[entity.JobStatus]int64, error) {
	out := map[entity.JobStatus]int64{}
	err := r.uow.do(func(s *state) error {
		for _, j := range s.jobs {
			out[j.Status]++
		}
		return nil
	})
	return out, err
}

func (r *jobRepository) DeleteFinishedBefore(ctx context.Context, status entity.JobStatus, before time.Time) (int64, error) {
	var deleted int64
	err := r.uow.do(func(s *state) error {
		for id, j := range s.jobs {
			if j.Status == status && j.FinishedAt != nil && j.FinishedAt.Before(before) {
				delete(s.jobs, id)
				deleted++
			}
		}
		return nil
	})
	return deleted, err
}
