package ingest

import (
	"fmt"
	"strings"
)

// ParseAccept splits an HTML-style accept attribute ("image/png,.jpg").
func ParseAccept(s string) []string {
	return normalizeAccept(strings.Split(s, ","))
}

// normalizeAccept trims and lowercases tokens and drops empty ones.
func normalizeAccept(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

type rules struct {
	accept  []string
	maxSize int64
}

// check runs the type check then the size check.
func (r rules) check(d Descriptor) *Failure {
	if len(r.accept) > 0 && !accepted(r.accept, d) {
		return newFailure(UnsupportedType, "File type not supported. Please use "+describeAccept(r.accept), nil)
	}
	if d.Size > r.maxSize {
		return r.oversized()
	}
	return nil
}

func (r rules) oversized() *Failure {
	return newFailure(OversizedPayload, sizeMessage(r.maxSize), nil)
}

func accepted(accept []string, d Descriptor) bool {
	typ := strings.ToLower(d.Type)
	name := strings.ToLower(d.Name)
	for _, tok := range accept {
		switch {
		case strings.HasPrefix(tok, "."):
			if strings.HasSuffix(name, tok) {
				return true
			}
		case strings.HasSuffix(tok, "/*"):
			if typ != "" && strings.HasPrefix(typ, strings.TrimSuffix(tok, "*")) {
				return true
			}
		default:
			if typ == tok {
				return true
			}
		}
	}
	return false
}

func sizeMessage(maxSize int64) string {
	return fmt.Sprintf("File size must be less than %.1fMB", float64(maxSize)/(1024*1024))
}

// describeAccept turns accept tokens into a readable list,
// e.g. "PNG, JPEG, or WebP".
func describeAccept(accept []string) string {
	seen := make(map[string]bool, len(accept))
	labels := make([]string, 0, len(accept))
	for _, tok := range accept {
		label := acceptLabel(tok)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}

	switch len(labels) {
	case 0:
		return "a supported file"
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " or " + labels[1]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1]
	}
}

func acceptLabel(tok string) string {
	if strings.HasPrefix(tok, ".") {
		return strings.ToUpper(tok[1:])
	}
	family, sub, ok := strings.Cut(tok, "/")
	if !ok {
		return strings.ToUpper(tok)
	}
	if sub == "*" {
		return "any " + family
	}
	sub = strings.TrimPrefix(sub, "x-")
	sub, _, _ = strings.Cut(sub, "+")
	if sub == "webp" {
		return "WebP"
	}
	return strings.ToUpper(sub)
}
