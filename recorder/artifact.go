package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Artifact is a finished take. Data is opaque encoded audio.
type Artifact struct {
	ID        uuid.UUID
	Data      []byte
	MimeKind  string
	Ext       string
	CreatedAt time.Time
	Duration  time.Duration
}

// FileName is the suggested download name, derived from the creation time.
func (a *Artifact) FileName() string {
	return fmt.Sprintf("recording-%s.%s", a.CreatedAt.Format("2006-01-02T15-04-05"), a.Ext)
}

// DirSaver writes artifacts into a directory.
type DirSaver struct {
	Dir string
}

func (d DirSaver) Save(a *Artifact) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	path := filepath.Join(d.Dir, a.FileName())
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(d.Dir, fmt.Sprintf("recording-%s-%s.%s",
			a.CreatedAt.Format("2006-01-02T15-04-05"), a.ID.String()[:8], a.Ext))
	}
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
