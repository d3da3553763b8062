package loader

import (
	"bytes"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// DocEntry is one markdown page in the sidebar.
type DocEntry struct {
	Slug  string
	Title string
}

// DocPage is the data the layout template renders.
type DocPage struct {
	Slug    string
	Title   string
	HTML    template.HTML
	Entries []DocEntry
	Found   bool
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		highlighting.NewHighlighting(
			highlighting.WithStyle("onedark"),
			highlighting.WithFormatOptions(
				chromahtml.WithClasses(true),
			),
		),
	),
)

// Load renders the page for slug from the markdown files in content. An empty slug
// selects the first page.
func Load(content fs.FS, slug string) DocPage {
	entries := ListDocs(content)
	slug = strings.TrimSpace(slug)
	if slug == "" && len(entries) > 0 {
		slug = entries[0].Slug
	}

	page := DocPage{Slug: slug, Entries: entries, Title: slug}
	for _, e := range entries {
		if e.Slug == slug {
			page.Title = e.Title
			page.Found = true
		}
	}
	if !page.Found || strings.Contains(slug, "..") {
		page.HTML = render("# Not found\n")
		return page
	}

	data, err := fs.ReadFile(content, slug+".md")
	if err != nil {
		page.Found = false
		page.HTML = render("# Not found\n")
		return page
	}
	page.HTML = render(string(data))
	return page
}

// ListDocs returns the markdown pages in content sorted by slug.
func ListDocs(content fs.FS) []DocEntry {
	entries := []DocEntry{}
	items, err := fs.ReadDir(content, ".")
	if err != nil {
		return entries
	}

	for _, item := range items {
		if item.IsDir() || path.Ext(item.Name()) != ".md" {
			continue
		}
		slug := strings.TrimSuffix(item.Name(), ".md")
		title := slug
		if data, err := fs.ReadFile(content, item.Name()); err == nil {
			if h := firstHeading(string(data)); h != "" {
				title = h
			}
		}
		entries = append(entries, DocEntry{Slug: slug, Title: title})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Slug < entries[j].Slug
	})
	return entries
}

func firstHeading(content string) string {
	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}

func render(source string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
