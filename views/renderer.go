package views

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path"
	"sync"

	"github.com/gin-gonic/gin/render"
	"github.com/hashicorp/go-hclog"
	"github.com/russross/blackfriday/v2"
)

// Renderer holds the parsed form of every template resource:
// .html resources as html templates and .md resources as rendered
// markdown. It implements gin's render.HTMLRender, so templates are
// looked up by resource name on every request and a Reload is
// visible to the next request.
type Renderer struct {
	mu sync.RWMutex

	resources Resources

	templates map[string]*template.Template
	markdown  map[string]template.HTML

	log hclog.Logger
}

func NewRenderer(resources Resources, logger hclog.Logger) *Renderer {
	return &Renderer{
		resources: resources,
		templates: make(map[string]*template.Template),
		markdown:  make(map[string]template.HTML),
		log:       logger,
	}
}

// Load parses every resource in the store.
func (r *Renderer) Load(ctx context.Context) error {
	names, err := r.resources.List(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := r.Reload(ctx, name); err != nil {
			return err
		}
	}

	r.log.Info("templates loaded", "resources", len(names))
	return nil
}

// Reload reads one resource again and replaces its parsed form.
// Resources that are neither .html nor .md are ignored.
func (r *Renderer) Reload(ctx context.Context, name string) error {
	ext := path.Ext(name)
	if ext != ".html" && ext != ".md" {
		return nil
	}

	text, err := r.resources.Read(ctx, name)
	if err != nil {
		return fmt.Errorf("reloading %s: %w", name, err)
	}

	switch ext {
	case ".html":
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}

		r.mu.Lock()
		r.templates[name] = tmpl
		r.mu.Unlock()
	case ".md":
		html := template.HTML(blackfriday.Run([]byte(text)))

		r.mu.Lock()
		r.markdown[name] = html
		r.mu.Unlock()
	}

	r.log.Debug("reloaded template resource", "name", name)
	return nil
}

// ReadResource returns the raw text of a resource.
func (r *Renderer) ReadResource(ctx context.Context, name string) (string, error) {
	return r.resources.Read(ctx, name)
}

// WriteResource replaces the raw text of a resource. The parsed form
// is only replaced by a following Reload.
func (r *Renderer) WriteResource(ctx context.Context, name string, text string) error {
	return r.resources.Write(ctx, name, text)
}

// HasTemplate reports whether an html template is loaded under name.
func (r *Renderer) HasTemplate(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.templates[name]
	return ok
}

// Markdown returns the rendered markdown resource under name.
func (r *Renderer) Markdown(name string) (template.HTML, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	html, ok := r.markdown[name]
	return html, ok
}

func (r *Renderer) Instance(name string, data any) render.Render {
	r.mu.RLock()
	tmpl, ok := r.templates[name]
	r.mu.RUnlock()

	if !ok {
		return missingTemplate{name: name}
	}

	return render.HTML{
		Template: tmpl,
		Name:     name,
		Data:     data,
	}
}

var errMissingTemplate = errors.New("template not loaded")

// missingTemplate fails the render; gin records the error on the
// request context.
type missingTemplate struct {
	name string
}

func (m missingTemplate) Render(w http.ResponseWriter) error {
	return fmt.Errorf("%w: %s", errMissingTemplate, m.name)
}

func (m missingTemplate) WriteContentType(w http.ResponseWriter) {}
