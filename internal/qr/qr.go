// Package qr renders invitation links as PNG QR codes on disk.
package qr

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels.
const DefaultSize = 512

// Writer renders QR images into Dir.
type Writer struct {
	Dir  string
	Size int
}

// Path returns the deterministic file path for a link: <dir>/invite-<token>.png,
// where token is the link's "start" query parameter.
func (w Writer) Path(link string) (string, error) {
	token, err := startToken(link)
	if err != nil {
		return "", err
	}
	return filepath.Join(w.Dir, "invite-"+token+".png"), nil
}

// Write renders link and returns the file path. Repeated calls for the same
// link overwrite the same file.
func (w Writer) Write(link string) (string, error) {
	path, err := w.Path(link)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("qr: create dir: %w", err)
	}
	size := w.Size
	if size <= 0 {
		size = DefaultSize
	}
	if err := qrcode.WriteFile(link, qrcode.Medium, size, path); err != nil {
		return "", fmt.Errorf("qr: encode: %w", err)
	}
	return path, nil
}

func startToken(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("qr: parse link: %w", err)
	}
	token := strings.TrimSpace(u.Query().Get("start"))
	if token == "" {
		return "", fmt.Errorf("qr: link %q has no start parameter", link)
	}
	if strings.ContainsAny(token, `/\.`) {
		return "", fmt.Errorf("qr: unsafe token %q", token)
	}
	return token, nil
}
