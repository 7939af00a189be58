package service

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragsync/internal/domain"
)

// ChunkConfig controls chunking for document embeddings. Sizes are in runes.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// WebChunkConfig is used for scraped pages, which are denser and less structured.
func WebChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1400,
		Overlap: 100,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	if c.Size <= 0 {
		c = DefaultChunkConfig()
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 5
	}
	return c
}

// separators are tried in priority order: paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

var pageMarker = regexp.MustCompile(`\[PAGE (\d+)\]`)

// ChunkDocument splits extracted text according to its format.
func ChunkDocument(text string, format domain.Format, cfg ChunkConfig) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.normalized()

	if format.RowOriented() {
		return chunkRows(text)
	}
	if format.PageOriented() && pageMarker.MatchString(text) {
		return chunkPages(text, cfg)
	}
	return chunkText(text, cfg)
}

// chunkText is the generic recursive splitter.
func chunkText(text string, cfg ChunkConfig) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.normalized()
	// Parts leave room for a full overlap seed in front of them.
	parts := atomize(text, cfg.Size-cfg.Overlap, separators)
	return packParts(parts, cfg)
}

// chunkRows emits one chunk per non-empty row. Rows are atomic, so no overlap.
func chunkRows(text string) []domain.Chunk {
	lines := strings.Split(text, "\n")
	chunks := make([]domain.Chunk, 0, len(lines))
	row := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:     line,
			Index:    len(chunks),
			Metadata: map[string]any{domain.MetaRowIndex: row},
		})
		row++
	}
	return chunks
}

// chunkPages splits on [PAGE n] markers and sub-chunks each page.
// Text before the first marker is chunked without a page number.
func chunkPages(text string, cfg ChunkConfig) []domain.Chunk {
	locs := pageMarker.FindAllStringSubmatchIndex(text, -1)

	type page struct {
		number int
		body   string
	}
	pages := make([]page, 0, len(locs)+1)
	if pre := text[:locs[0][0]]; strings.TrimSpace(pre) != "" {
		pages = append(pages, page{number: 0, body: pre})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		body := strings.TrimSpace(text[loc[1]:end])
		if body == "" {
			continue
		}
		pages = append(pages, page{number: n, body: body})
	}

	var chunks []domain.Chunk
	for _, p := range pages {
		for _, c := range chunkText(p.body, cfg) {
			c.Index = len(chunks)
			if p.number > 0 {
				c.Metadata = map[string]any{domain.MetaPageNumber: p.number}
			}
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// atomize breaks text into parts no longer than size runes whose concatenation
// is exactly text. Separators stay attached to the preceding part.
func atomize(text string, size int, seps []string) []string {
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return hardCut(text, size)
	}

	parts := splitKeepSeparator(text, seps[0])
	if len(parts) == 1 {
		return atomize(text, size, seps[1:])
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if utf8.RuneCountInString(p) <= size {
			out = append(out, p)
			continue
		}
		out = append(out, atomize(p, size, seps[1:])...)
	}
	return out
}

func splitKeepSeparator(text, sep string) []string {
	var parts []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			break
		}
		parts = append(parts, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// packParts greedily fills chunks up to cfg.Size. Each new chunk is seeded with
// the trailing cfg.Overlap runes of the previous one. Parts are at most
// cfg.Size-cfg.Overlap runes, so a flushed buffer is always longer than the
// seed and the seed always fits next to the part that caused the flush.
func packParts(parts []string, cfg ChunkConfig) []domain.Chunk {
	var chunks []domain.Chunk
	var buf []rune
	seeded := 0

	emit := func() {
		chunks = append(chunks, domain.Chunk{
			Text:    string(buf),
			Index:   len(chunks),
			Overlap: seeded,
		})
	}

	for _, part := range parts {
		p := []rune(part)
		if len(p) == 0 {
			continue
		}
		if len(buf)+len(p) <= cfg.Size {
			buf = append(buf, p...)
			continue
		}

		emit()

		seed := cfg.Overlap
		if seed > len(buf) {
			seed = len(buf)
		}
		next := make([]rune, 0, cfg.Size)
		next = append(next, buf[len(buf)-seed:]...)
		buf = append(next, p...)
		seeded = seed
	}

	if len(buf) > seeded {
		emit()
	}
	return chunks
}
