package loader

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

// Page is a rendered document that still references assets by source path.
type Page struct {
	Title       string
	Description string
	Body        string
}

// HTML renders the document. Asset paths are logical; the server rewrites them.
func (p Page) HTML() string {
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(p.Title))
	fmt.Fprintf(&b, `<meta name="description" content="%s">`, html.EscapeString(p.Description))
	b.WriteString(`<link rel="stylesheet" href="/src/style.css">`)
	b.WriteString(`<script type="module" src="/src/client.tsx"></script>`)
	b.WriteString(`<script src="https://cdn.example.com/analytics.js" defer></script>`)
	b.WriteString("</head><body>")
	b.WriteString(p.Body)
	b.WriteString("</body></html>")
	return b.String()
}

func Home(r *http.Request) Page {
	items := []string{"First", "Second", "Third"}
	var list strings.Builder
	for _, item := range items {
		fmt.Fprintf(&list, "<li>%s</li>", html.EscapeString(item))
	}
	return Page{
		Title:       "Storefront",
		Description: "Sample storefront with hashed client assets.",
		Body: fmt.Sprintf(`<h1>Storefront</h1><ul>%s</ul><p>Rendered %s</p>`,
			list.String(), time.Now().Format(time.RFC3339)),
	}
}

func Product(r *http.Request) Page {
	store := r.PathValue("store")
	product := r.PathValue("product")
	title := "Product detail"
	if store != "" && product != "" {
		title = store + " / " + product
	}
	return Page{
		Title:       title,
		Description: "Product detail page.",
		Body: fmt.Sprintf(`<h1>%s</h1><p>In stock: $39.00</p><div id="cart" data-product="%s"></div>`,
			html.EscapeString(title), html.EscapeString(product)),
	}
}
