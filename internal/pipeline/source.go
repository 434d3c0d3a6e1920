package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

var frameExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// DirSource feeds a node from image files appearing in a spool directory,
// the way a camera driver drops frames. Files must appear atomically, so
// writers should write under a hidden name and rename into place; only
// create events are acted on and dot files are ignored.
type DirSource struct {
	dir     string
	node    *Node
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// NewDirSource starts watching dir. Frames are not ingested until Run.
func NewDirSource(dir string, node *Node, log zerolog.Logger) (*DirSource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &DirSource{
		dir:     dir,
		node:    node,
		watcher: w,
		log:     log.With().Str("component", "source").Str("dir", dir).Logger(),
	}, nil
}

// Run ingests new frame files until ctx is canceled. It closes the watcher
// on return.
func (s *DirSource) Run(ctx context.Context) error {
	defer s.watcher.Close()
	s.log.Info().Msg("watching for frames")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) || !isFrameFile(ev.Name) {
				continue
			}
			if _, err := s.node.IngestFile(ev.Name); err != nil {
				s.log.Warn().Err(err).Str("file", filepath.Base(ev.Name)).Msg("failed to ingest frame")
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func isFrameFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return frameExts[strings.ToLower(filepath.Ext(name))]
}
