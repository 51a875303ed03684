package commands

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	describeuc "github.com/kailas-cloud/lookbook/internal/usecase/describe"
)

func validateNonNegative(v int, name string) error {
	if v < 0 {
		return fmt.Errorf("--%s must not be negative, got %d", name, v)
	}
	return nil
}

// imageArg turns a CLI argument into an image: http(s) URLs are passed
// through, anything else is read as a local file.
func imageArg(arg string) (describeuc.Image, error) {
	if u, err := url.Parse(arg); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return describeuc.Image{URL: arg}, nil
	}
	if info, err := os.Stat(arg); err == nil && info.Size() > describeuc.MaxImageBytes {
		return describeuc.Image{}, fmt.Errorf("image %s is %d bytes, limit %d", arg, info.Size(), describeuc.MaxImageBytes)
	}
	data, err := os.ReadFile(arg) //nolint:gosec // path comes from the operator
	if err != nil {
		return describeuc.Image{}, fmt.Errorf("read image: %w", err)
	}
	return describeuc.Image{Bytes: data}, nil
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
