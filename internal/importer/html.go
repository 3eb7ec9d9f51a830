package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
)

// Elements dropped before conversion when a page has no main content area.
const chromeSelector = "nav, header, footer, aside, script, style, noscript, iframe, form, button"

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// htmlConverter renders HTML pages as Markdown. It is safe for concurrent use.
type htmlConverter struct {
	conv *md.Converter
}

func newHTMLConverter() *htmlConverter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &htmlConverter{conv: conv}
}

// ParseHTML converts an exported HTML page into a Note. The title comes from
// <title>, then the first <h1>, then the file name. Only <main>, <article> or
// [role=main] is converted when present; otherwise the body without page chrome.
func (c *htmlConverter) ParseHTML(content []byte, relativePath, defaultNamespace string) (*Note, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("html parse error in %s: %w", relativePath, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = titleFromPath(relativePath)
	}

	var tags []string
	if kw, ok := doc.Find(`meta[name="keywords"]`).Attr("content"); ok {
		tags = splitList(kw)
	}
	author, _ := doc.Find(`meta[name="author"]`).Attr("content")

	sel := doc.Find("main, article, [role=main]").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
		sel.Find(chromeSelector).Remove()
	}
	body := blankRunRe.ReplaceAllString(strings.TrimSpace(c.conv.Convert(sel)), "\n\n")

	var namespaces []string
	if ns := namespaceFromPath(relativePath); ns != "" {
		namespaces = []string{ns}
	} else if defaultNamespace != "" {
		namespaces = []string{defaultNamespace}
	}

	return &Note{
		RelativePath: relativePath,
		Title:        title,
		Body:         body,
		Tags:         mergeTags(tags, nil),
		Namespaces:   namespaces,
		Author:       strings.TrimSpace(author),
	}, nil
}
