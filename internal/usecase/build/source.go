package build

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// FileSource reads descriptions from a local file: either a JSON array of
// strings, or plain text with one description per line.
type FileSource struct {
	Path string
}

// maxLineBytes bounds a single description line.
const maxLineBytes = 1 << 20

// Texts implements Source.
func (f FileSource) Texts(ctx context.Context, limit int) ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}

	var texts []string
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &texts); err != nil {
			return nil, fmt.Errorf("parse %s as JSON array: %w", f.Path, err)
		}
	} else {
		sc := bufio.NewScanner(strings.NewReader(string(data)))
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				return nil, err //nolint:wrapcheck // cancellation is reported as-is
			}
			texts = append(texts, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan %s: %w", f.Path, err)
		}
	}

	if limit > 0 && len(texts) > limit {
		texts = texts[:limit]
	}
	return texts, nil
}
