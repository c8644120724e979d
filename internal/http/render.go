package http

import (
	"embed"
	"html/template"
	"io"

	"github.com/jmehdipour/wa-notifier/internal/model"
	"github.com/jmehdipour/wa-notifier/internal/session"
	echo "github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templatesFS embed.FS

const (
	ModePage = "page"
	ModeJSON = "json"
)

// pageView is the index.html view model. After an upload exactly one of Success and
// Error is set.
type pageView struct {
	QRCode  template.URL
	Ready   bool
	Success string
	Error   string
	Result  *model.BatchResult
}

func newPageView(tr *session.Tracker) pageView {
	v := pageView{Ready: tr.Ready()}
	if url, ok := tr.QRCode(); ok {
		// data URLs are produced by the tracker from a PNG encoder, never from user input
		v.QRCode = template.URL(url)
	}
	return v
}

type templateRenderer struct {
	t *template.Template
}

func newRenderer() *templateRenderer {
	return &templateRenderer{t: template.Must(template.ParseFS(templatesFS, "templates/*.html"))}
}

func (r *templateRenderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}
