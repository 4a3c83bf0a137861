package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-notetaking-pipeline/internal/constant"
	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/pkg/logger"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type ITagService interface {
	// Resolve returns one tag id per distinct name, creating missing tags.
	Resolve(ctx context.Context, names []string) ([]uuid.UUID, error)
}

type tagService struct {
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewTagService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) ITagService {
	return &tagService{
		uowFactory: uowFactory,
		logger:     log,
	}
}

// Resolve runs outside the assembly transaction: a unique violation aborts a
// Postgres transaction, and tags are safe to create ahead of the note.
func (s *tagService) Resolve(ctx context.Context, names []string) ([]uuid.UUID, error) {
	names = s.distinct(names)
	if len(names) == 0 {
		return nil, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.TagRepository()

	existing, err := repo.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	byKey := make(map[string]*entity.Tag, len(existing))
	for _, t := range existing {
		byKey[s.key(t.Name)] = t
	}

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		if t, ok := byKey[s.key(name)]; ok {
			ids = append(ids, t.Id)
			continue
		}

		tag := &entity.Tag{Id: uuid.New(), Name: name}
		err := repo.Create(ctx, tag)
		if errors.Is(err, contract.ErrDuplicate) {
			// Another worker created it concurrently.
			found, ferr := repo.FindByName(ctx, name)
			if ferr != nil {
				return nil, fmt.Errorf("refetch tag %q: %w", name, ferr)
			}
			if found == nil {
				return nil, fmt.Errorf("tag %q conflicted but is not readable", name)
			}
			s.logger.Debug(constant.ModuleTags, "Tag created concurrently, reusing", map[string]interface{}{
				"tag": found.Name,
			})
			tag = found
		} else if err != nil {
			return nil, fmt.Errorf("create tag %q: %w", name, err)
		}
		byKey[s.key(tag.Name)] = tag
		ids = append(ids, tag.Id)
	}
	return ids, nil
}

func (s *tagService) key(name string) string {
	return entity.TagKey(name)
}

func (s *tagService) distinct(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.Join(strings.Fields(n), " ")
		if n == "" {
			continue
		}
		k := s.key(n)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, n)
	}
	return out
}
