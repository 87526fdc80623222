// Package loader reads documents from files for summarization. It extracts plain text from
// text, Markdown, PDF and HTML files.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	docsum "github.com/MegaGrindStone/go-docsum"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupportedFormat is returned for files whose extension has no loader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extensions lists the file extensions Load understands.
var Extensions = []string{".txt", ".go", ".md", ".markdown", ".pdf", ".html", ".htm"}

// Loader reads files into documents.
type Loader struct {
	// StripMarkdown renders Markdown files to plain text instead of keeping the raw source.
	StripMarkdown bool
}

// Load reads the file at path and returns its text as a Document whose ID is the path.
func (l Loader) Load(path string) (docsum.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return docsum.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	content, err := l.Extract(path, data)
	if err != nil {
		return docsum.Document{}, err
	}

	return docsum.Document{
		ID:      path,
		Content: content,
	}, nil
}

// Extract returns the text of data, interpreting it by the extension of name.
func (l Loader) Extract(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".go":
		return string(data), nil
	case ".md", ".markdown":
		if !l.StripMarkdown {
			return string(data), nil
		}
		return markdownText(data), nil
	case ".pdf":
		return pdfText(data)
	case ".html", ".htm":
		return htmlText(name, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// Supported reports whether Load understands the extension of path.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func markdownText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				buf.Write(n.Segment.Value(source))
				if n.SoftLineBreak() || n.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(n.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					buf.Write(segment.Value(source))
				}
				buf.WriteByte('\n')
				return ast.WalkSkipChildren, nil
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.ThematicBreak:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}

func pdfText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(pageText)
	}

	return buf.String(), nil
}

func htmlText(name string, data []byte) (string, error) {
	pageURL := &url.URL{Scheme: "file", Path: filepath.ToSlash(name)}

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to extract article from %s: %w", name, err)
	}

	return strings.TrimSpace(article.TextContent), nil
}
