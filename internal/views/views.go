// Package views renders the HTML pages of the library from embedded
// templates.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageIndex    = "index"
	PageBooks    = "books"
	PageBorrow   = "borrow"
	PageReturn   = "return"
	PageRegister = "register"
	PageLogin    = "login"
	PageError    = "error"
)

var pages = []string{PageIndex, PageBooks, PageBorrow, PageReturn, PageRegister, PageLogin, PageError}

// Data is the bag of values handed to a template.
type Data map[string]any

// Renderer executes page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with the given status. Output is buffered so a template
// error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Data) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
