package labels

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/partline/partline/web"
)

// PDFClient exposes the subset of the report client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Renderer turns label data into an A4 PDF via html/template + PDF conversion.
type Renderer struct {
	tpl    *template.Template
	client PDFClient
}

// NewRenderer parses the A4 label template and wires the PDF client.
func NewRenderer(client PDFClient) (*Renderer, error) {
	if client == nil {
		return nil, fmt.Errorf("labels renderer: pdf client required")
	}
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
	}
	tpl, err := template.New("a4.html").Funcs(funcMap).ParseFS(web.Templates, "templates/labels/a4.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tpl: tpl, client: client}, nil
}

// Render executes the template over the paginated labels and converts the
// HTML to PDF bytes.
func (r *Renderer) Render(ctx context.Context, labels []Label) ([]byte, error) {
	if r == nil || r.tpl == nil || r.client == nil {
		return nil, fmt.Errorf("labels renderer not initialised")
	}
	buf := &bytes.Buffer{}
	if err := r.tpl.Execute(buf, Paginate(labels)); err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, buf.String())
}
