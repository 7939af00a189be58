package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noise lists elements that carry no document content.
const noise = "script, style, noscript, nav, footer, header, aside, svg, iframe, form"

// Page is the readable content of an HTML document.
type Page struct {
	Title string
	Text  string
}

// HTML strips page chrome and returns the text of the main content region,
// falling back to article and then body.
func HTML(data []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return Page{}, unparseable("html", err)
	}
	return HTMLDocument(doc), nil
}

// HTMLDocument extracts a Page from an already parsed document.
func HTMLDocument(doc *goquery.Document) Page {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find(noise).Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("article").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	// Break block elements onto their own lines before flattening.
	root.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, br, pre, blockquote, section").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return Page{Title: title, Text: cleanLines(root.Text())}
}

func cleanLines(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
