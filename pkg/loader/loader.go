package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// Loader extracts plain text from a file on disk.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) (string, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry maps lowercase extensions (".pdf") to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewDefaultRegistry knows plain text, markdown, PDF and HTML.
func NewDefaultRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(".txt", LoaderFunc(loadText))
	r.Register(".md", LoaderFunc(loadText))
	r.Register(".pdf", LoaderFunc(loadPDF))
	r.Register(".html", LoaderFunc(loadHTML))
	r.Register(".htm", LoaderFunc(loadHTML))
	return r
}

func (r *Registry) Register(ext string, l Loader) {
	r.loaders[strings.ToLower(ext)] = l
}

func (r *Registry) Supports(ext string) bool {
	_, ok := r.loaders[strings.ToLower(ext)]
	return ok
}

// Extract runs the loader registered for ext.
func (r *Registry) Extract(ctx context.Context, ext, path string) (string, error) {
	l, ok := r.loaders[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return l.Load(ctx, path)
}

func loadText(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load text: %w", err)
	}
	return joinPages(docs), nil
}

func loadPDF(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load pdf: %w", err)
	}
	return joinPages(docs), nil
}

func loadHTML(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	docs, err := documentloaders.NewHTML(f).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load html: %w", err)
	}
	return joinPages(docs), nil
}

// joinPages concatenates page contents with newlines, one page per document.
func joinPages(docs []schema.Document) string {
	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		pages = append(pages, d.PageContent)
	}
	return strings.Join(pages, "\n")
}
