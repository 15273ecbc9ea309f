package ingest

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Drop is the data carried by one drag-and-drop gesture. Any combination
// of fields may be set; Classify decides which one is used.
type Drop struct {
	URIList string // text/uri-list
	URL     string // legacy "URL" flavor
	HTML    string // text/html
	Text    string // text/plain
	Files   []File
}

// Shape is the recognized form of a drop.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeURIList
	ShapeHTML
	ShapeFiles
	ShapeText
)

func (s Shape) String() string {
	switch s {
	case ShapeURIList:
		return "uri-list"
	case ShapeHTML:
		return "html"
	case ShapeFiles:
		return "files"
	case ShapeText:
		return "text"
	default:
		return "unrecognized"
	}
}

// Classified is a drop reduced to the single shape that will be handled.
type Classified struct {
	Shape Shape
	Ref   string // remote reference for uri-list, html and text shapes
	Files []File
}

// Classify applies the shape priority: uri list, html image, files,
// plain-text URL. HTML without a usable <img> falls through.
func Classify(d Drop) Classified {
	ref := firstURI(d.URIList)
	if ref == "" {
		ref = firstURI(d.URL)
	}
	if ref != "" {
		return Classified{Shape: ShapeURIList, Ref: ref}
	}

	if src := firstImageSrc(d.HTML); src != "" {
		return Classified{Shape: ShapeHTML, Ref: src}
	}

	if len(d.Files) > 0 {
		return Classified{Shape: ShapeFiles, Files: d.Files}
	}

	if text := firstLine(d.Text); isHTTPURL(text) {
		return Classified{Shape: ShapeText, Ref: text}
	}

	return Classified{Shape: ShapeUnrecognized}
}

// firstURI returns the first http(s) entry of a uri list, skipping
// comment lines.
func firstURI(list string) string {
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isHTTPURL(line) {
			return line
		}
		return ""
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

func isHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// firstImageSrc finds the first <img> in an HTML fragment and returns its
// src when it is absolute (http, https or data). Only the first image is
// considered.
func firstImageSrc(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	img := findElement(doc, "img", 0)
	if img == nil {
		return ""
	}
	src := strings.TrimSpace(getAttr(img, "src"))
	if isHTTPURL(src) || IsDataURL(src) {
		return src
	}
	return ""
}

func findElement(n *html.Node, tag string, depth int) *html.Node {
	if depth > 64 {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, depth+1); found != nil {
			return found
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

var imageExtPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)(\?.*)?$`)

// looksLikeImage is a loose filter for plain-text URLs. The fetched
// content type is still checked afterwards.
func looksLikeImage(u string) bool {
	if imageExtPattern.MatchString(u) {
		return true
	}
	for _, hint := range []string{"image", "photo", "img", "pic"} {
		if strings.Contains(u, hint) {
			return true
		}
	}
	return false
}

// nameFromURL mirrors how a browser names a blob saved from a link:
// the last path segment without its query.
func nameFromURL(ref string) string {
	if IsDataURL(ref) {
		return "image"
	}
	name := ref[strings.LastIndex(ref, "/")+1:]
	name, _, _ = strings.Cut(name, "?")
	if name == "" {
		return "image"
	}
	return name
}
