package http

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed assets/index.html.tmpl assets/app.js assets/style.css
var assets embed.FS

// PageData configures the map page.
type PageData struct {
	MapsAPIKey string
	WSPath     string
}

type pageTemplateData struct {
	PageData
	CSS template.CSS
	JS  template.JS
}

// Page serves the pre-rendered, minified map page.
type Page struct {
	body []byte
	etag string
}

// NewPage renders the map page once. The result never changes for the life
// of the process.
func NewPage(data PageData) (*Page, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)

	cssMin, err := minifyAsset(m, "assets/style.css", "text/css")
	if err != nil {
		return nil, err
	}
	jsMin, err := minifyAsset(m, "assets/app.js", "text/javascript")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(assets, "assets/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, pageTemplateData{
		PageData: data,
		CSS:      template.CSS(cssMin), //nolint:gosec // embedded asset
		JS:       template.JS(jsMin),   //nolint:gosec // embedded asset
	}); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}

	out, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify page: %w", err)
	}

	sum := sha256.Sum256(out)
	return &Page{
		body: out,
		etag: fmt.Sprintf(`"%x"`, sum[:8]),
	}, nil
}

func minifyAsset(m *minify.M, name, mediatype string) (string, error) {
	raw, err := assets.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	out, err := m.String(mediatype, string(raw))
	if err != nil {
		return "", fmt.Errorf("minify %s: %w", name, err)
	}
	return out, nil
}

func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if match := r.Header.Get("If-None-Match"); match == p.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", p.etag)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(p.body)
}
