// internal/index/chunker.go
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// chunkWindow is the fallback chunk size in lines when no declaration
// boundary is found.
const chunkWindow = 50

// maxIndexedFileSize caps the files worth embedding.
const maxIndexedFileSize = 10 << 20

// indexedExtensions are the source file types the indexer considers.
var indexedExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {},
	".rs": {}, ".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".rb": {},
	".lua": {}, ".md": {},
}

// declarationPrefixes mark lines where a new chunk should start, a cheap
// cross-language stand-in for real parsing.
var declarationPrefixes = []string{
	"func ", "def ", "class ", "fn ", "impl ", "function ", "type ", "struct ",
	"public ", "private ", "protected ",
}

// indexableFile reports whether the file at path should be chunked.
func indexableFile(path string, size int64) bool {
	if size > maxIndexedFileSize {
		return false
	}
	_, ok := indexedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ChunkFile splits a source file into line-window chunks, preferring to break
// at declaration boundaries.
func ChunkFile(path, rel string) ([]Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	var chunks []Chunk

	start := 0
	for start < len(lines) {
		end := start + 1
		for end < len(lines) && end-start < chunkWindow {
			if isDeclaration(lines[end]) && end-start >= chunkWindow/2 {
				break
			}
			end++
		}

		content := strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				ID:        fmt.Sprintf("%s:%d-%d", rel, start+1, end),
				Path:      rel,
				StartLine: start + 1,
				EndLine:   end,
				Kind:      chunkKind(lines[start]),
				Content:   content,
			})
		}
		start = end
	}

	return chunks, nil
}

func isDeclaration(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range declarationPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func chunkKind(firstLine string) string {
	if isDeclaration(firstLine) {
		return "declaration"
	}
	return "block"
}
