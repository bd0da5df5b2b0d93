package htmlfix

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	spaceRuns  = regexp.MustCompile(`[ \t\r\f\v]+`)
	blockElems = "p, div, tr, li, h1, h2, h3, h4, h5, h6, blockquote, table, pre"
)

// PlainText renders an HTML body as readable terminal text. Images become
// "[image: alt]" markers and links keep their target after the label.
func PlainText(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, title").Remove()
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		label, _ := sel.Attr("alt")
		if label == "" {
			label, _ = sel.Attr("src")
		}
		sel.ReplaceWithHtml("[image: " + escapeText(label) + "]")
	})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if href == "" || text == href || strings.HasPrefix(href, "mailto:") {
			return
		}
		sel.AppendHtml(" (" + escapeText(href) + ")")
	})
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElems).Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(l, " "))
	}
	text := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text), nil
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
