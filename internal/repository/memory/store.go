package memory

import (
	"context"
	"fmt"
	"sync"

	"ai-notetaking-pipeline/internal/entity"
	"ai-notetaking-pipeline/internal/repository/contract"
	"ai-notetaking-pipeline/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// state is one consistent snapshot of every table.
type state struct {
	sources  map[uuid.UUID]*entity.Source
	visuals  map[uuid.UUID]*entity.Visual
	notes    map[uuid.UUID]*entity.Note
	tags     map[uuid.UUID]*entity.Tag
	noteTags map[uuid.UUID]map[uuid.UUID]struct{}
	jobs     map[uuid.UUID]*entity.Job
}

func newState() *state {
	return &state{
		sources:  map[uuid.UUID]*entity.Source{},
		visuals:  map[uuid.UUID]*entity.Visual{},
		notes:    map[uuid.UUID]*entity.Note{},
		tags:     map[uuid.UUID]*entity.Tag{},
		noteTags: map[uuid.UUID]map[uuid.UUID]struct{}{},
		jobs:     map[uuid.UUID]*entity.Job{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.sources {
		c.sources[k] = cloneSource(v)
	}
	for k, v := range s.visuals {
		c.visuals[k] = cloneVisual(v)
	}
	for k, v := range s.notes {
		c.notes[k] = cloneNote(v)
	}
	for k, v := range s.tags {
		t := *v
		c.tags[k] = &t
	}
	for k, v := range s.noteTags {
		links := make(map[uuid.UUID]struct{}, len(v))
		for id := range v {
			links[id] = struct{}{}
		}
		c.noteTags[k] = links
	}
	for k, v := range s.jobs {
		c.jobs[k] = cloneJob(v)
	}
	return c
}

// Store is an in-process database for single-process mode and tests. Every
// repository call is atomic; a transaction holds the store exclusively and
// works on a private copy that replaces the live state on Commit.
type Store struct {
	mu   sync.Mutex
	data *state
}

func NewStore() *Store {
	return &Store{data: newState()}
}

// RepositoryFactory hands out units of work over a Store.
type RepositoryFactory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &UnitOfWork{store: f.store}
}

type UnitOfWork struct {
	store *Store
	tx    *state
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.tx = u.store.data.clone()
	return nil
}

func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.store.data = u.tx
	u.tx = nil
	u.store.mu.Unlock()
	return nil
}

func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to rollback")
	}
	u.tx = nil
	u.store.mu.Unlock()
	return nil
}

// do runs fn against the transaction copy, or against the live state under the lock.
func (u *UnitOfWork) do(fn func(s *state) error) error {
	if u.tx != nil {
		return fn(u.tx)
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	return fn(u.store.data)
}

func (u *UnitOfWork) SourceRepository() contract.SourceRepository {
	return &sourceRepository{uow: u}
}

func (u *UnitOfWork) VisualRepository() contract.VisualRepository {
	return &visualRepository{uow: u}
}

func (u *UnitOfWork) NoteRepository() contract.NoteRepository {
	return &noteRepository{uow: u}
}

func (u *UnitOfWork) TagRepository() contract.TagRepository {
	return &tagRepository{uow: u}
}

func (u *UnitOfWork) JobRepository() contract.JobRepository {
	return &jobRepository{uow: u}
}
