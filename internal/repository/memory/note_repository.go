package memory

import (
	"context"
	"time"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/contract"

	"github.com/google/uuid"
)

type noteRepository struct {
	uow *UnitOfWork
}

func (r *noteRepository) Create(ctx context.Context, note *entity.Note) error {
	return r.uow.do(func(s *state) error {
		for _, n := range s.notes {
			if n.SourceId == note.SourceId {
				return contract.ErrDuplicate
			}
		}
		if note.Id == uuid.Nil {
			note.Id = uuid.New()
		}
		note.CreatedAt = time.Now()
		stored := cloneNote(note)
		stored.TagIds = nil
		s.notes[note.Id] = stored
		return nil
	})
}

func (r *noteRepository) FindBySource(ctx context.Context, sourceId uuid.UUID) (*entity.Note, error) {
	var out *entity.Note
	err := r.uow.do(func(s *state) error {
		for _, n := range s.notes {
			if n.SourceId != sourceId {
				continue
			}
			out = cloneNote(n)
			out.TagIds = nil
			for tagId := range s.noteTags[n.Id] {
				out.TagIds = append(out.TagIds, tagId)
			}
			return nil
		}
		return nil
	})
	return out, err
}

func (r *noteRepository) LinkTags(ctx context.Context, noteId uuid.UUID, tagIds []uuid.UUID) error {
	return r.uow.do(func(s *state) error {
		if _, ok := s.notes[noteId]; !ok {
			return contract.ErrNotFound
		}
		links, ok := s.noteTags[noteId]
		if !ok {
			links = map[uuid.UUID]struct{}{}
			s.noteTags[noteId] = links
		}
		for _, id := range tagIds {
			if _, ok := s.tags[id]; !ok {
				return contract.ErrNotFound
			}
			links[id] = struct{}{}
		}
		return nil
	})
}

func (r *noteRepository) CountBySource(ctx context.Context, sourceId uuid.UUID) (int64, error) {
	var count int64
	err := r.uow.do(func(s *state) error {
		for _, n := range s.notes {
			if n.SourceId == sourceId {
				count++
			}
		}
		return nil
	})
	return count, err
}

type tagRepository struct {
	uow *UnitOfWork
}

func (r *tagRepository) Create(ctx context.Context, tag *entity.Tag) error {
	return r.uow.do(func(s *state) error {
		tag.Key = entity.TagKey(tag.Name)
		for _, t := range s.tags {
			if t.Key == tag.Key {
				return contract.ErrDuplicate
			}
		}
		if tag.Id == uuid.Nil {
			tag.Id = uuid.New()
		}
		tag.CreatedAt = time.Now()
		stored := *tag
		s.tags[tag.Id] = &stored
		return nil
	})
}

func (r *tagRepository) FindByName(ctx context.Context, name string) (*entity.Tag, error) {
	tags, err := r.FindByNames(ctx, []string{name})
	if err != nil || len(tags) == 0 {
		return nil, err
	}
	return tags[0], nil
}

func (r *tagRepository) FindByNames(ctx context.Context, names []string) ([]*entity.Tag, error) {
	keys := make(map[string]bool, len(names))
	for _, n := range names {
		keys[entity.TagKey(n)] = true
	}
	var out []*entity.Tag
	err := r.uow.do(func(s *state) error {
		for _, t := range s.tags {
			if keys[t.Key] {
				found := *t
				out = append(out, &found)
			}
		}
		return nil
	})
	return out, err
}

func (r *tagRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.uow.do(func(s *state) error {
		count = int64(len(s.tags))
		return nil
	})
	return count, err
}
