// Package rag turns vector-index hits into a citation-ready context block.
package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
)

const (
	resultsOpen  = "<results>"
	resultsClose = "</results>"
)

type chunkKey struct {
	url   string
	order int
}

// GroupSources groups chunks by source URL. Sources keep first-seen order,
// chunks inside a source are sorted by Order, and exact duplicates (same URL
// and Order) are dropped keeping the first one seen.
func GroupSources(chunks []domain.Chunk) []domain.Source {
	if len(chunks) == 0 {
		return nil
	}

	seen := make(map[chunkKey]struct{}, len(chunks))
	index := make(map[string]int)
	var sources []domain.Source

	for _, c := range chunks {
		key := chunkKey{url: c.SourceURL, order: c.Order}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		i, ok := index[c.SourceURL]
		if !ok {
			i = len(sources)
			index[c.SourceURL] = i
			sources = append(sources, domain.Source{
				URL:         c.SourceURL,
				Description: c.SourceDescription,
				Type:        c.SourceType,
			})
		}
		src := &sources[i]
		if src.Description == "" {
			src.Description = c.SourceDescription
		}
		if src.Type == "" {
			src.Type = c.SourceType
		}
		src.Chunks = append(src.Chunks, c)
	}

	for i := range sources {
		group := sources[i].Chunks
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].Order < group[b].Order
		})
	}

	return sources
}

// FormatContext renders sources as a numbered, plain-text block.
func FormatContext(sources []domain.Source) string {
	if len(sources) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(sources))
	for i, src := range sources {
		blocks = append(blocks, formatSource(i+1, src))
	}
	return strings.Join(blocks, "\n\n")
}

func formatSource(n int, src domain.Source) string {
	var b strings.Builder

	title := src.Description
	if title == "" {
		title = src.URL
	}
	fmt.Fprintf(&b, "[%d] %s\n", n, title)
	if src.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", src.URL)
	}
	if src.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", src.Type)
	}

	dialects := distinct(src.Chunks, func(c domain.Chunk) string { return c.Dialect })
	if len(dialects) > 0 {
		fmt.Fprintf(&b, "Dialect: %s\n", strings.Join(dialects, ", "))
	}
	topics := distinct(src.Chunks, func(c domain.Chunk) string { return c.Topic })
	if len(topics) > 0 {
		fmt.Fprintf(&b, "Topic: %s\n", strings.Join(topics, ", "))
	}

	for _, c := range src.Chunks {
		b.WriteString("\n")
		for _, line := range []string{c.PreContext, c.Text, c.PostContext} {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func distinct(chunks []domain.Chunk, field func(domain.Chunk) string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		v := strings.TrimSpace(field(c))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Wrap encloses a formatted context in the results delimiters.
func Wrap(context string) string {
	return resultsOpen + context + resultsClose
}

// BuildContext groups, formats and wraps chunks. No chunks yields "".
func BuildContext(chunks []domain.Chunk) string {
	formatted := FormatContext(GroupSources(chunks))
	if formatted == "" {
		return ""
	}
	return Wrap(formatted)
}
