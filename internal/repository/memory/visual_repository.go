package memory

import (
	"context"
	"time"

	"ai-notetaking-pipeline/internal/entity"

	"github.com/google/uuid"
)

type visualRepository struct {
	uow *UnitOfWork
}

func (r *visualRepository) CreateIfAbsent(ctx context.Context, visual *entity.Visual) (bool, error) {
	created := false
	err := r.uow.do(func(s *state) error {
		for _, v := range s.visuals {
			if v.SourceId == visual.SourceId && v.PlaceholderId == visual.PlaceholderId {
				*visual = *cloneVisual(v)
				return nil
			}
		}
		if visual.Id == uuid.Nil {
			visual.Id = uuid.New()
		}
		if visual.Status == "" {
			visual.Status = entity.VisualStatusPending
		}
		visual.CreatedAt = time.Now()
		s.visuals[visual.Id] = cloneVisual(visual)
		created = true
		return nil
	})
	return created, err
}

func (r *visualRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Visual, error) {
	var out *entity.Visual
	err := r.uow.do(func(s *state) error {
		if v, ok := s.visuals[id]; ok {
			out = cloneVisual(v)
		}
		return nil
	})
	return out, err
}

func (r *visualRepository) FindBySource(ctx context.Context, sourceId uuid.UUID) ([]*entity.Visual, error) {
	var out []*entity.Visual
	err := r.uow.do(func(s *state) error {
		out = visualsOf(s, sourceId)
		return nil
	})
	return out, err
}

func (r *visualRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	updated := false
	err := r.uow.do(func(s *state) error {
		v, ok := s.visuals[id]
		if !ok || v.Status.IsTerminal() {
			return nil
		}
		v.Status = entity.VisualStatusProcessing
		touch(&v.UpdatedAt)
		updated = true
		return nil
	})
	return updated, err
}

func (r *visualRepository) Finish(ctx context.Context, id uuid.UUID, outcome entity.VisualOutcome) (bool, error) {
	updated := false
	err := r.uow.do(func(s *state) error {
		v, ok := s.visuals[id]
		if !ok || v.Status.IsTerminal() {
			return nil
		}
		v.Status = outcome.Status
		v.ImageUrl = optional(outcome.ImageUrl)
		v.AltText = optional(outcome.AltText)
		v.AttributionUrl = optional(outcome.AttributionUrl)
		v.AttributionTitle = optional(outcome.AttributionTitle)
		v.ErrorMessage = optional(outcome.ErrorMessage)
		if outcome.Status == entity.VisualStatusCompleted {
			score := outcome.Score
			v.Score = &score
		}
		touch(&v.UpdatedAt)
		updated = true
		return nil
	})
	return updated, err
}

func (r *visualRepository) CountNonTerminal(ctx context.Context, sourceId uuid.UUID) (int64, error) {
	var count int64
	err := r.uow.do(func(s *state) error {
		for _, v := range s.visuals {
			if v.SourceId == sourceId && !v.Status.IsTerminal() {
				count++
			}
		}
		return nil
	})
	return count, err
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
