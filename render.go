package vitessr

import (
	"fmt"
	"html"
	"html/template"
	"strings"
)

// TagKind is the element an asset renders as.
type TagKind int

const (
	TagScript TagKind = iota
	TagLink
)

// Attr is a passthrough attribute. Boolean attributes render without a value.
type Attr struct {
	Name    string
	Value   string
	Boolean bool
}

// RenderAssetTag renders the markup for one resolved asset. When ok is false the
// src/href attribute is omitted rather than guessed.
func RenderAssetTag(kind TagKind, asset ResolvedAsset, ok bool, attrs []Attr) template.HTML {
	var b strings.Builder

	switch kind {
	case TagScript:
		if ok {
			b.WriteString(stylesheetLinks(asset.CSS, companionAttrs(attrs)))
		}
		b.WriteString("<script")
		if !hasAttr(attrs, "type") {
			b.WriteString(` type="module"`)
		}
		if ok {
			fmt.Fprintf(&b, ` src="%s"`, html.EscapeString(asset.URL))
		}
		writeAttrs(&b, attrs, "src")
		b.WriteString("></script>")
	case TagLink:
		b.WriteString("<link")
		if ok {
			fmt.Fprintf(&b, ` href="%s"`, html.EscapeString(asset.URL))
		}
		writeAttrs(&b, attrs, "href")
		b.WriteString(">")
	}

	return template.HTML(b.String())
}

// Script resolves logicalPath as a script source and renders it.
func (r *Resolver) Script(logicalPath string, attrs ...Attr) template.HTML {
	asset, ok := r.ResolveSrc(logicalPath)
	return RenderAssetTag(TagScript, asset, ok, attrs)
}

// Link resolves logicalPath as a link target and renders it.
func (r *Resolver) Link(logicalPath string, attrs ...Attr) template.HTML {
	url, ok := r.ResolveHref(logicalPath)
	return RenderAssetTag(TagLink, ResolvedAsset{URL: url}, ok, attrs)
}

// ViteClientTag loads the dev server client. Production renders nothing.
func ViteClientTag(production bool) template.HTML {
	if production {
		return ""
	}
	return `<script type="module" src="/@vite/client"></script>`
}

const reactRefreshPreamble = `
    import RefreshRuntime from '/@react-refresh';
    RefreshRuntime.injectIntoGlobalHook(window);
    window.$RefreshReg$ = () => {};
    window.$RefreshSig$ = () => (type) => type;
    window.__vite_plugin_react_preamble_installed__ = true;
  `

// ReactRefreshTag installs the fast refresh preamble. Production renders nothing.
func ReactRefreshTag(production bool) template.HTML {
	if production {
		return ""
	}
	return template.HTML(`<script type="module" src="/@react-refresh"></script>` +
		`<script type="module">` + reactRefreshPreamble + `</script>`)
}

// TemplateFuncs exposes the resolver to html/template:
//
//	{{ viteScript "/src/client.tsx" "async" "" }}
//	{{ viteLink "/src/style.css" "rel" "stylesheet" }}
//	{{ viteAsset "/src/logo.svg" }}
//	{{ viteClient }} {{ reactRefresh }}
//
// Trailing arguments are name/value pairs; an empty value renders a boolean attribute.
func TemplateFuncs(r *Resolver) template.FuncMap {
	return template.FuncMap{
		"viteScript": func(logicalPath string, pairs ...string) (template.HTML, error) {
			attrs, err := attrPairs(pairs)
			if err != nil {
				return "", err
			}
			return r.Script(logicalPath, attrs...), nil
		},
		"viteLink": func(logicalPath string, pairs ...string) (template.HTML, error) {
			attrs, err := attrPairs(pairs)
			if err != nil {
				return "", err
			}
			return r.Link(logicalPath, attrs...), nil
		},
		"viteAsset": func(logicalPath string) string {
			url, _ := r.ResolveHref(logicalPath)
			return url
		},
		"viteClient": func() template.HTML {
			return ViteClientTag(r.production())
		},
		"reactRefresh": func() template.HTML {
			return ReactRefreshTag(r.production())
		},
	}
}

func attrPairs(pairs []string) ([]Attr, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("attributes must be name/value pairs, got %d values", len(pairs))
	}
	attrs := make([]Attr, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		attrs = append(attrs, Attr{Name: pairs[i], Value: pairs[i+1], Boolean: pairs[i+1] == ""})
	}
	return attrs, nil
}

// companionAttrs picks the script attributes copied onto its companion stylesheets.
func companionAttrs(attrs []Attr) []Attr {
	var out []Attr
	for _, a := range attrs {
		if strings.EqualFold(a.Name, "crossorigin") || strings.EqualFold(a.Name, "nonce") {
			out = append(out, a)
		}
	}
	return out
}

func stylesheetLinks(css []string, attrs []Attr) string {
	var b strings.Builder
	for _, href := range css {
		b.WriteString(`<link rel="stylesheet"`)
		writeAttrs(&b, attrs, "href")
		fmt.Fprintf(&b, ` href="%s">`, html.EscapeString(href))
	}
	return b.String()
}

func hasAttr(attrs []Attr, name string) bool {
	for _, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			return true
		}
	}
	return false
}

func writeAttrs(b *strings.Builder, attrs []Attr, skip string) {
	for _, a := range attrs {
		if a.Name == "" || strings.EqualFold(a.Name, skip) {
			continue
		}
		if a.Boolean {
			fmt.Fprintf(b, " %s", html.EscapeString(a.Name))
			continue
		}
		fmt.Fprintf(b, ` %s="%s"`, html.EscapeString(a.Name), html.EscapeString(a.Value))
	}
}
