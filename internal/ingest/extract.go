package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupported is returned for documents whose format cannot be read.
var ErrUnsupported = errors.New("unsupported document format")

// Kind is the detected format of an uploaded document.
type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindText Kind = "text"
)

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".csv": true, ".json": true, ".yaml": true, ".yml": true,
}

// DetectKind classifies a document by content type, then extension, then
// content sniffing.
func DetectKind(filename, contentType string, data []byte) (Kind, error) {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "application/pdf":
			return KindPDF, nil
		case mt == "text/html" || mt == "application/xhtml+xml":
			return KindHTML, nil
		case strings.HasPrefix(mt, "text/"):
			return KindText, nil
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return KindPDF, nil
	case ext == ".html" || ext == ".htm":
		return KindHTML, nil
	case textExtensions[ext]:
		return KindText, nil
	}

	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return KindPDF, nil
	}
	if utf8.Valid(data) {
		return KindText, nil
	}
	return "", fmt.Errorf("%s: %w", filename, ErrUnsupported)
}

// ExtractText returns the plain text of an uploaded document.
func ExtractText(filename, contentType string, data []byte) (string, error) {
	kind, err := DetectKind(filename, contentType, data)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = pdfText(data)
	case KindHTML:
		text, err = htmlText(data)
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%s: not valid UTF-8: %w", filename, ErrUnsupported)
		}
		text = string(data)
	}
	if err != nil {
		return "", fmt.Errorf("extracting %s text from %s: %w", kind, filename, err)
	}
	return normalizeSpace(text), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func htmlText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
				b.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String(), nil
}

// normalizeSpace collapses runs of blank lines and trims each line.
func normalizeSpace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
