package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yulifengwx/RazorRockstars/storage"
	"github.com/yulifengwx/RazorRockstars/views"
)

func newTestService(t *testing.T) (*Service, *views.Renderer) {
	t.Helper()

	ctx := context.Background()

	resources := views.NewFSResources(afero.NewMemMapFs())
	require.NoError(t, resources.Write(ctx, PageTemplate, "<h1>Kurt</h1>\n{{ .Content }}"))
	require.NoError(t, resources.Write(ctx, ContentTemplate, "Kurt Cobain"))

	renderer := views.NewRenderer(resources, hclog.NewNullLogger())
	require.NoError(t, renderer.Load(ctx))

	store := storage.NewStore(storage.NewMemoryBackend(hclog.NewNullLogger()))
	svc := New(store, renderer, hclog.NewNullLogger())
	svc.now = func() time.Time {
		return time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	}

	_, err := svc.Reset(ctx)
	require.NoError(t, err)

	return svc, renderer
}

func ageOf(n int) *int {
	return &n
}

func TestResetSeedsStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, storage.Rockstar{FirstName: "Extra"})
	require.NoError(t, err)

	res, err := svc.Reset(ctx)
	require.NoError(t, err)

	assert.Equal(t, 9, res.Total)
	assert.Nil(t, res.Aged)
	if diff := cmp.Diff(SeedData, res.Results); diff != "" {
		t.Errorf("unexpected rockstars after reset (-want +got):\n%s", diff)
	}
}

func TestSearchByAge(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Search(ctx, SearchRequest{Age: ageOf(42)})
	require.NoError(t, err)

	assert.Equal(t, 9, res.Total)
	assert.Equal(t, 42, *res.Aged)
	assert.Equal(t, []storage.Rockstar{
		{ID: 5, FirstName: "Elvis", LastName: "Presley", Age: 42, Alive: false},
	}, res.Results)

	res, err = svc.Search(ctx, SearchRequest{Age: ageOf(27)})
	require.NoError(t, err)
	assert.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Equal(t, 27, r.Age)
	}
}

func TestSearchIDWinsOverAge(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), SearchRequest{ID: 10, Age: ageOf(27)})
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "Springsteen", res.Results[0].LastName)
	assert.Equal(t, "/stars/alive/springsteen/", res.Results[0].URL())
}

func TestSearchMissingID(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Search(context.Background(), SearchRequest{ID: 3})
	require.NoError(t, err)

	assert.Equal(t, 9, res.Total)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Create(ctx, storage.Rockstar{FirstName: "Amy", LastName: "Winehouse", Age: 27})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)

	created := res.Results[len(res.Results)-1]
	assert.Equal(t, 11, created.ID)

	res, err = svc.Search(ctx, SearchRequest{ID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, []storage.Rockstar{created}, res.Results)
	assert.Equal(t, "/stars/dead/winehouse/", res.Results[0].URL())
}

func TestCreateReplacesExisting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Create(ctx, storage.Rockstar{ID: 8, FirstName: "David"})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Total)

	res, err = svc.Search(ctx, SearchRequest{ID: 8})
	require.NoError(t, err)

	// fields missing from the payload are reset, not merged
	assert.Equal(t, []storage.Rockstar{{ID: 8, FirstName: "David"}}, res.Results)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	res, err := svc.Delete(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Total)
	assert.Len(t, res.Results, 8)

	res, err = svc.Search(ctx, SearchRequest{ID: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	// deleting again is a no-op
	res, err = svc.Delete(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Total)
}

func TestUpdateContent(t *testing.T) {
	ctx := context.Background()
	svc, renderer := newTestService(t)
	banner := "<h2 style='color:green'>UPDATED MARKDOWN at 3:04:05 PM</h2>\n"

	target, err := svc.UpdateContent(ctx, UpdateContentRequest{})
	require.NoError(t, err)
	assert.Equal(t, UpdatedPage, target)

	content, err := renderer.ReadResource(ctx, ContentTemplate)
	require.NoError(t, err)
	assert.Equal(t, banner+"Kurt Cobain", content)

	md, ok := renderer.Markdown(ContentTemplate)
	require.True(t, ok)
	assert.Contains(t, string(md), "UPDATED MARKDOWN")

	// the page is only touched with Razor
	page, err := renderer.ReadResource(ctx, PageTemplate)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Kurt</h1>\n{{ .Content }}", page)

	_, err = svc.UpdateContent(ctx, UpdateContentRequest{Razor: true})
	require.NoError(t, err)

	page, err = renderer.ReadResource(ctx, PageTemplate)
	require.NoError(t, err)
	assert.Equal(t, "<h2 style='color:green'>UPDATED RAZOR at 3:04:05 PM</h2>\n<h1>Kurt</h1>\n{{ .Content }}", page)

	content, err = renderer.ReadResource(ctx, ContentTemplate)
	require.NoError(t, err)
	assert.Equal(t, banner+"Kurt Cobain", content)

	_, err = svc.UpdateContent(ctx, UpdateContentRequest{Razor: true, Clear: true})
	require.NoError(t, err)

	page, err = renderer.ReadResource(ctx, PageTemplate)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Kurt</h1>\n{{ .Content }}", page)

	content, err = renderer.ReadResource(ctx, ContentTemplate)
	require.NoError(t, err)
	assert.Equal(t, "Kurt Cobain", content)
}

func TestUpdateContentWithoutTemplates(t *testing.T) {
	store := storage.NewStore(storage.NewMemoryBackend(hclog.NewNullLogger()))
	svc := New(store, nil, hclog.NewNullLogger())

	_, err := svc.UpdateContent(context.Background(), UpdateContentRequest{})
	assert.Error(t, err)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) Count(ctx context.Context) (int, error) {
	return 0, f.err
}

func TestSearchPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("backend unavailable")
	svc := New(failingStore{err: boom}, nil, hclog.NewNullLogger())

	_, err := svc.Search(context.Background(), SearchRequest{})
	assert.ErrorIs(t, err, boom)
}
