// Package clipboard puts the saved take's path on the system clipboard.
package clipboard

import (
	"fmt"

	cb "github.com/atotto/clipboard"
)

// Available reports whether a clipboard backend was found (xclip, xsel or
// wl-clipboard on Linux; always true on macOS and Windows).
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard copy: %w", err)
	}
	return nil
}

func Read() (string, error) {
	text, err := cb.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard read: %w", err)
	}
	return text, nil
}
