// Package service answers rockstar requests. Every operation makes one
// call to the store and shapes the result; nothing is kept between
// requests.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/yulifengwx/RazorRockstars/storage"
	"github.com/yulifengwx/RazorRockstars/views"
)

// SeedData is what Reset puts back into the store.
var SeedData = []storage.Rockstar{
	{ID: 1, FirstName: "Jimi", LastName: "Hendrix", Age: 27, Alive: false},
	{ID: 2, FirstName: "Janis", LastName: "Joplin", Age: 27, Alive: false},
	{ID: 4, FirstName: "Kurt", LastName: "Cobain", Age: 27, Alive: false},
	{ID: 5, FirstName: "Elvis", LastName: "Presley", Age: 42, Alive: false},
	{ID: 6, FirstName: "Michael", LastName: "Jackson", Age: 50, Alive: false},
	{ID: 7, FirstName: "Eddie", LastName: "Vedder", Age: 47, Alive: true},
	{ID: 8, FirstName: "Dave", LastName: "Grohl", Age: 43, Alive: true},
	{ID: 9, FirstName: "Courtney", LastName: "Love", Age: 48, Alive: true},
	{ID: 10, FirstName: "Bruce", LastName: "Springsteen", Age: 62, Alive: true},
}

// Template resources touched by UpdateContent.
const (
	PageTemplate    = "stars/dead/cobain/default.html"
	ContentTemplate = "stars/dead/cobain/Content.md"
	UpdatedPage     = "/stars/dead/cobain/"
)

type Store interface {
	Get(ctx context.Context, id int) (*storage.Rockstar, error)
	ScanAll(ctx context.Context) ([]storage.Rockstar, error)
	ScanIDs(ctx context.Context) ([]int, error)
	QueryByAge(ctx context.Context, age int) ([]storage.Rockstar, error)
	Count(ctx context.Context) (int, error)
	Put(ctx context.Context, r *storage.Rockstar) error
	PutMany(ctx context.Context, rs []storage.Rockstar) error
	Delete(ctx context.Context, id int) error
	DeleteMany(ctx context.Context, ids []int) error
}

// Templates is a registry of template resources that can be told to
// reload one of them.
type Templates interface {
	ReadResource(ctx context.Context, name string) (string, error)
	WriteResource(ctx context.Context, name string, text string) error
	Reload(ctx context.Context, name string) error
}

// SearchRequest selects by ID when it is non-zero, otherwise by Age
// when it is set, otherwise everything.
type SearchRequest struct {
	ID  int
	Age *int
}

// RockstarsResponse is returned by every data operation.
// Total is always the size of the whole table.
type RockstarsResponse struct {
	Total   int                `json:"total"`
	Aged    *int               `json:"aged"`
	Results []storage.Rockstar `json:"results"`
}

type UpdateContentRequest struct {
	// Razor also updates the page template, not just its content.
	Razor bool
	// Clear removes the banner instead of adding a new one.
	Clear bool
}

type Service struct {
	store     Store
	templates Templates

	now func() time.Time
	log hclog.Logger
}

// New returns a Service. templates may be nil, UpdateContent then fails.
func New(store Store, templates Templates, logger hclog.Logger) *Service {
	return &Service{
		store:     store,
		templates: templates,
		now:       time.Now,
		log:       logger,
	}
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (*RockstarsResponse, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting rockstars: %w", err)
	}

	results, err := s.results(ctx, req)
	if err != nil {
		return nil, err
	}

	if results == nil {
		results = []storage.Rockstar{}
	}

	return &RockstarsResponse{
		Total:   total,
		Aged:    req.Age,
		Results: results,
	}, nil
}

func (s *Service) results(ctx context.Context, req SearchRequest) ([]storage.Rockstar, error) {
	switch {
	case req.ID != 0:
		r, err := s.store.Get(ctx, req.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("getting rockstar %d: %w", req.ID, err)
		}
		return []storage.Rockstar{*r}, nil

	case req.Age != nil:
		rs, err := s.store.QueryByAge(ctx, *req.Age)
		if err != nil {
			return nil, fmt.Errorf("querying rockstars aged %d: %w", *req.Age, err)
		}
		return rs, nil

	default:
		rs, err := s.store.ScanAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning rockstars: %w", err)
		}
		return rs, nil
	}
}

func (s *Service) Delete(ctx context.Context, id int) (*RockstarsResponse, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("deleting rockstar %d: %w", id, err)
	}

	return s.Search(ctx, SearchRequest{})
}

// Create stores r as given, replacing any record with the same id.
// A zero id is assigned by the store.
func (s *Service) Create(ctx context.Context, r storage.Rockstar) (*RockstarsResponse, error) {
	if err := s.store.Put(ctx, &r); err != nil {
		return nil, fmt.Errorf("putting rockstar: %w", err)
	}

	s.log.Debug("rockstar stored", "id", r.ID)
	return s.Search(ctx, SearchRequest{})
}

// Reset replaces the whole table with SeedData. Readers running
// between the delete and the put see an empty table.
func (s *Service) Reset(ctx context.Context) (*RockstarsResponse, error) {
	ids, err := s.store.ScanIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning rockstar ids: %w", err)
	}

	if err := s.store.DeleteMany(ctx, ids); err != nil {
		return nil, fmt.Errorf("deleting rockstars: %w", err)
	}

	if err := s.store.PutMany(ctx, SeedData); err != nil {
		return nil, fmt.Errorf("seeding rockstars: %w", err)
	}

	s.log.Info("rockstars reset", "deleted", len(ids), "seeded", len(SeedData))
	return s.Search(ctx, SearchRequest{})
}

// UpdateContent stamps a banner on the Kurt Cobain page and returns
// the page to redirect to.
func (s *Service) UpdateContent(ctx context.Context, req UpdateContentRequest) (string, error) {
	if s.templates == nil {
		return "", errors.New("no template resources configured")
	}

	if req.Razor {
		if err := s.updateResource(ctx, PageTemplate, "UPDATED RAZOR", req.Clear); err != nil {
			return "", err
		}
	}

	if err := s.updateResource(ctx, ContentTemplate, "UPDATED MARKDOWN", req.Clear); err != nil {
		return "", err
	}

	return UpdatedPage, nil
}

func (s *Service) updateResource(ctx context.Context, name, text string, clear bool) error {
	contents, err := s.templates.ReadResource(ctx, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	updated := views.UpdateContent(text, contents, clear, s.now())

	if err := s.templates.WriteResource(ctx, name, updated); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	if err := s.templates.Reload(ctx, name); err != nil {
		return err
	}

	s.log.Debug("template resource updated", "name", name, "clear", clear)
	return nil
}
