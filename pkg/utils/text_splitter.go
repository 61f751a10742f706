package utils

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// TextSplitter turns extracted text into index-sized chunks.
type TextSplitter interface {
	Split(text string) ([]string, error)
}

// NewTextSplitter picks a strategy: "fixed" (rune window) or "recursive"
// (paragraph/sentence aware, via langchaingo).
func NewTextSplitter(strategy string, chunkSize, overlap int) (TextSplitter, error) {
	switch strategy {
	case "", "fixed":
		return FixedSplitter{ChunkSize: chunkSize, Overlap: overlap}, nil
	case "recursive":
		return RecursiveSplitter{splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		)}, nil
	default:
		return nil, fmt.Errorf("unsupported chunk strategy: %s", strategy)
	}
}

type FixedSplitter struct {
	ChunkSize int
	Overlap   int
}

func (s FixedSplitter) Split(text string) ([]string, error) {
	return SplitText(text, s.ChunkSize, s.Overlap), nil
}

type RecursiveSplitter struct {
	splitter textsplitter.RecursiveCharacter
}

func (s RecursiveSplitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	chunks, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	return dropBlank(chunks), nil
}

// SplitText splits a long string into chunks of at most 'chunkSize' runes.
// Consecutive chunks share 'overlap' runes to preserve context at boundaries.
// Whitespace-only input yields no chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	totalLen := len(runes)
	if chunkSize <= 0 || totalLen <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	var chunks []string
	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return dropBlank(chunks)
}

func dropBlank(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
