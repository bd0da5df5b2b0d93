// Package htmlfix repairs provider-delivered message HTML so it renders
// correctly outside the provider's own web client.
package htmlfix

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// BlockedImagePlaceholder replaces images until the reader opts in.
const BlockedImagePlaceholder = `<div class="blocked-image" style="border:1px dashed #ccc;padding:10px;color:#666;font-size:11px;background:#f5f5f5;">[IMAGE BLOCKED]</div>`

// resourceAttrs are attributes whose URLs are fetched by the renderer.
var resourceAttrs = []string{"src", "background", "poster", "data-src"}

var (
	insecureStyleURL = regexp.MustCompile(`(?i)url\(\s*(['"]?)http://`)
	insecureSrcset   = regexp.MustCompile(`(?i)(^|,\s*)http://`)
)

// Options controls provider-specific repairs.
type Options struct {
	// ImageProxyPath is the last path segment of the provider's image
	// redirect (e.g., "res.php"). Empty disables the rewrite.
	ImageProxyPath string

	// ImageProxyParam is the query parameter carrying the encoded original.
	ImageProxyParam string
}

// DecodeEntities turns entity-escaped preview text into literal
// characters. Providers sometimes double-escape, so it decodes until the
// text stops changing, at most twice.
func DecodeEntities(s string) string {
	for i := 0; i < 2; i++ {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// Repair rewrites provider image redirects back to their original URLs
// and upgrades http:// resource URLs to https://. Fragments stay fragments.
func Repair(body string, opts Options) (string, error) {
	if strings.TrimSpace(body) == "" {
		return body, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}

	if opts.ImageProxyPath != "" {
		doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			if original, ok := unwrapImageProxy(src, opts); ok {
				sel.SetAttr("src", original)
			}
		})
	}

	for _, attr := range resourceAttrs {
		doc.Find("[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
			v, _ := sel.Attr(attr)
			sel.SetAttr(attr, UpgradeURL(v))
		})
	}
	doc.Find("[srcset]").Each(func(_ int, sel *goquery.Selection) {
		v, _ := sel.Attr("srcset")
		sel.SetAttr("srcset", insecureSrcset.ReplaceAllString(v, "${1}https://"))
	})
	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		v, _ := sel.Attr("href")
		sel.SetAttr("href", UpgradeURL(v))
	})
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		v, _ := sel.Attr("style")
		sel.SetAttr("style", insecureStyleURL.ReplaceAllString(v, "url(${1}https://"))
	})
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		css := sel.Text()
		if fixed := insecureStyleURL.ReplaceAllString(css, "url(${1}https://"); fixed != css {
			sel.SetText(fixed)
		}
	})

	return render(doc, body)
}

// BlockImages replaces every <img> with a placeholder block.
func BlockImages(body string) (string, error) {
	if !strings.Contains(strings.ToLower(body), "<img") {
		return body, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("img").ReplaceWithHtml(BlockedImagePlaceholder)
	return render(doc, body)
}

// UpgradeURL rewrites a leading http:// scheme to https://.
func UpgradeURL(v string) string {
	trimmed := strings.TrimSpace(v)
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "http://") {
		return "https://" + trimmed[7:]
	}
	return v
}

// unwrapImageProxy recovers the original URL from a provider redirect
// such as "res.php?r=1&n=blk&q=https%3A%2F%2Fcdn.example%2Fa.png",
// whether the redirect is absolute or a broken relative path.
func unwrapImageProxy(src string, opts Options) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(u.Path, opts.ImageProxyPath) {
		return "", false
	}

	param := opts.ImageProxyParam
	if param == "" {
		param = "q"
	}
	original := u.Query().Get(param)
	if original == "" {
		return "", false
	}
	if strings.HasPrefix(original, "//") {
		original = "https:" + original
	}
	return UpgradeURL(original), true
}

// render serializes doc back, keeping fragments as fragments. The parser
// hoists a fragment's leading style, meta and link elements into the
// implied head, so those are written back ahead of the body.
func render(doc *goquery.Document, original string) (string, error) {
	if strings.Contains(strings.ToLower(original), "<html") {
		return doc.Html()
	}
	head, err := doc.Find("head").Html()
	if err != nil {
		return "", err
	}
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	return head + body, nil
}
