package memory

import (
	"context"
	"sort"
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

type sourceRepository struct {
	uow *UnitOfWork
}

func (r *sourceRepository) Create(ctx context.Context, source *entity.Source) error {
	return r.uow.do(func(s *state) error {
		if source.Id == uuid.Nil {
			source.Id = uuid.New()
		}
		if _, ok := s.sources[source.Id]; ok {
			return contract.ErrDuplicate
		}
		if source.Status == "" {
			source.Status = entity.ProcessingStatusPending
		}
		if source.Stage == "" {
			source.Stage = entity.StageQueued
		}
		source.CreatedAt = time.Now()
		s.sources[source.Id] = cloneSource(source)
		return nil
	})
}

func (r *sourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.uow.do(func(s *state) error {
		delete(s.sources, id)
		for vid, v := range s.visuals {
			if v.SourceId == id {
				delete(s.visuals, vid)
			}
		}
		return nil
	})
}

func (r *sourceRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Source, error) {
	var out *entity.Source
	err := r.uow.do(func(s *state) error {
		if src, ok := s.sources[id]; ok {
			out = cloneSource(src)
		}
		return nil
	})
	return out, err
}

func (r *sourceRepository) FindByIdWithVisuals(ctx context.Context, id uuid.UUID) (*entity.Source, error) {
	var out *entity.Source
	err := r.uow.do(func(s *state) error {
		src, ok := s.sources[id]
		if !ok {
			return nil
		}
		out = cloneSource(src)
		out.Visuals = visualsOf(s, id)
		return nil
	})
	return out, err
}

func (r *sourceRepository) TransitionStage(ctx context.Context, id uuid.UUID, t entity.Transition, status entity.ProcessingStatus) (bool, error) {
	updated := false
	err := r.uow.do(func(s *state) error {
		src, ok := s.sources[id]
		if !ok || !t.Allows(src.Stage) {
			return nil
		}
		src.Stage = t.To()
		src.Status = status
		src.ProcessingError = nil
		touch(&src.UpdatedAt)
		updated = true
		return nil
	})
	return updated, err
}

func (r *sourceRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string, stages ...entity.ProcessingStage) (bool, error) {
	updated := false
	err := r.uow.do(func(s *state) error {
		src, ok := s.sources[id]
		if !ok {
			return nil
		}
		if len(stages) > 0 && !containsStage(stages, src.Stage) {
			return nil
		}
		src.Status = entity.ProcessingStatusFailed
		src.ProcessingError = &message
		touch(&src.UpdatedAt)
		updated = true
		return nil
	})
	return updated, err
}

func (r *sourceRepository) SaveResult(ctx context.Context, id uuid.UUID, result entity.SourceResult) error {
	return r.uow.do(func(s *state) error {
		src, ok := s.sources[id]
		if !ok {
			return contract.ErrNotFound
		}
		text := result.ExtractedText
		src.ExtractedText = &text
		if result.LanguageCode != "" {
			src.LanguageCode = result.LanguageCode
		}
		src.Metadata = mergeMetadata(src.Metadata, result.Metadata)
		touch(&src.UpdatedAt)
		return nil
	})
}

func (r *sourceRepository) MergeMetadata(ctx context.Context, id uuid.UUID, patch map[string]interface{}) error {
	return r.uow.do(func(s *state) error {
		src, ok := s.sources[id]
		if !ok {
			return contract.ErrNotFound
		}
		src.Metadata = mergeMetadata(src.Metadata, patch)
		touch(&src.UpdatedAt)
		return nil
	})
}

func mergeMetadata(current, patch map[string]interface{}) map[string]interface{} {
	merged := cloneMetadata(current)
	for k, v := range cloneMetadata(patch) {
		merged[k] = v
	}
	return merged
}

func visualsOf(s *state, sourceId uuid.UUID) []*entity.Visual {
	var out []*entity.Visual
	for _, v := range s.visuals {
		if v.SourceId == sourceId {
			out = append(out, cloneVisual(v))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PlaceholderId < out[j].PlaceholderId
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func containsStage(stages []entity.ProcessingStage, stage entity.ProcessingStage) bool {
	for _, s := range stages {
		if s == stage {
			return true
		}
	}
	return false
}

func touch(field **time.Time) {
	now := time.Now()
	*field = &now
}
