package echoapi

import (
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/session"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

const (
	templatesDir = "templates"
	layoutFile   = "_layout.html"
)

// pageData is what every page template receives.
type pageData struct {
	Title    string
	AppName  string
	Identity *session.Identity
	Warning  string
	Error    string
	Next     string
	Profile  *user.AlumniProfile
	Users    []user.User
}

// templateRenderer holds one template set per page, each parsed with the layout.
type templateRenderer struct {
	pages map[string]*template.Template // {name without ext: *Template}
}

func mustParseTemplates(fsys fs.FS) *templateRenderer {
	r, err := parseTemplates(fsys)
	if err != nil {
		panic(err)
	}
	return r
}

func parseTemplates(fsys fs.FS) (*templateRenderer, error) {
	files, err := fs.Glob(fsys, path.Join(templatesDir, "*.html"))
	if err != nil {
		return nil, errors.Wrap(err, "listing templates")
	}
	r := &templateRenderer{pages: make(map[string]*template.Template, len(files))}
	layout := path.Join(templatesDir, layoutFile)
	for _, file := range files {
		base := path.Base(file)
		if strings.HasPrefix(base, "_") {
			continue
		}
		tmpl, err := template.ParseFS(fsys, layout, file)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", file)
		}
		r.pages[strings.TrimSuffix(base, ".html")] = tmpl
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
