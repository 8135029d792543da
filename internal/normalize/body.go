package normalize

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DefaultFileProxyPrefix is the route that streams chat attachments.
const DefaultFileProxyPrefix = "/admin/ozon-support/files"

const hiddenContent = "<strong><i>Контент пользователя доступен только в чате личного кабинета OZON Seller</i></strong>"

var (
	imageMarker      = regexp.MustCompile(`^!\[[^\]]*\]\(([^)\s]*)\)`)
	screenshotMarker = regexp.MustCompile(`(?i)screenshot[^(]*\(([^)\s]*)\)`)
	videoMarker      = regexp.MustCompile(`(?i)\[(?:video|видео)[^\]]*\]\((https?://[^\s)]+)\)`)
	markdownLink     = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^\s)]+)\)`)
)

// FileRef locates the message an attachment belongs to.
type FileRef struct {
	Account string
	Ticket  string
	Message string
}

// BodyRenderer turns marketplace message text into safe HTML.
type BodyRenderer struct {
	prefix string
}

// NewBodyRenderer builds a renderer linking attachments under prefix.
func NewBodyRenderer(prefix string) *BodyRenderer {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultFileProxyPrefix
	}
	return &BodyRenderer{prefix: prefix}
}

// ProxyURL is the internal route for one attachment.
func (r *BodyRenderer) ProxyURL(ref FileRef, link string) string {
	segments := []string{ref.Account, ref.Ticket, ref.Message, fileName(link)}
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.prefix + "/" + strings.Join(segments, "/") + "/info"
}

// Render applies the first attachment rule whose marker matches, otherwise
// renders the text with its markdown links.
func (r *BodyRenderer) Render(text string, ref FileRef) string {
	if strings.HasPrefix(text, "!") {
		if out, ok := r.image(imageMarker, text, ref); ok {
			return out
		}
	} else if strings.Contains(strings.ToLower(text), "screenshot") {
		if out, ok := r.image(screenshotMarker, text, ref); ok {
			return out
		}
	}
	if m := videoMarker.FindStringSubmatch(text); m != nil {
		u := html.EscapeString(r.ProxyURL(ref, m[1]))
		return fmt.Sprintf(`<a href="%s" class="ms-3" target="_blank">Открыть видео</a>`, u)
	}
	return renderLinks(text)
}

// image reports false when the marker is absent so the text is kept. A
// marker without a usable file is the hidden content placeholder.
func (r *BodyRenderer) image(marker *regexp.Regexp, text string, ref FileRef) (string, bool) {
	m := marker.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if fileName(m[1]) == "" {
		return hiddenContent, true
	}
	u := html.EscapeString(r.ProxyURL(ref, m[1]))
	return fmt.Sprintf(`<img src="%s" width="200" height="auto"> <a href="%s" class="ms-3" target="_blank">Открыть полное фото</a>`, u, u), true
}

// renderLinks escapes text and replaces [label](http...) with anchors.
func renderLinks(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range markdownLink.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(escapeText(text[last:loc[0]]))
		label := text[loc[2]:loc[3]]
		href := text[loc[4]:loc[5]]
		if label == "" || label == href {
			label = "Ссылка"
		}
		fmt.Fprintf(&b, `<a href="%s" target="_blank">%s</a>`, html.EscapeString(href), html.EscapeString(label))
		last = loc[1]
	}
	b.WriteString(escapeText(text[last:]))
	return b.String()
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

// fileName is the last path segment of a link without its query.
func fileName(link string) string {
	if link == "" {
		return ""
	}
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		link = u.Path
	}
	name := path.Base(link)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

var tag = regexp.MustCompile(`<[^>]*>`)

// PlainText strips markup from an operator reply before it is sent to the
// marketplace.
func PlainText(body string) string {
	body = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n").Replace(body)
	body = html.UnescapeString(tag.ReplaceAllString(body, ""))
	return strings.TrimSpace(body)
}
