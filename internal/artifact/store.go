package artifact

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imaged/internal/common/fsutil"
	"imaged/pkg/types"
)

// Store persists generated images under an output directory and hands back
// dual representations: a durable file plus an inline data URL. Identifiers
// come from a collision-resistant generator, never a counter, because
// requests are concurrent.
type Store struct {
	dir     string
	urlBase string
	index   *Index
	log     zerolog.Logger
}

// NewStore builds a Store over dir, creating it if absent. urlBase is the
// public retrieval prefix ("/images" when empty). index may be nil.
func NewStore(dir, urlBase string, index *Index, log zerolog.Logger) (*Store, error) {
	abs, err := fsutil.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}
	if urlBase == "" {
		urlBase = "/images"
	}
	return &Store{
		dir:     abs,
		urlBase: strings.TrimRight(urlBase, "/"),
		index:   index,
		log:     log,
	}, nil
}

// Dir returns the absolute output directory, for static file serving.
func (s *Store) Dir() string { return s.dir }

// Save assigns a unique identity to the image, writes it durably, and
// returns the artifact with both representations filled in.
func (s *Store) Save(ctx context.Context, img image.Image, family types.Family, mode string, seed int64) (types.Artifact, error) {
	id := uuid.NewString()
	filename := fmt.Sprintf("%s_%s_%s.png", family, mode, id)
	path := filepath.Join(s.dir, filename)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return types.Artifact{}, fmt.Errorf("encode png: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return types.Artifact{}, fmt.Errorf("write artifact: %w", err)
	}

	art := types.Artifact{
		ID:       id,
		Filename: filename,
		Path:     path,
		URL:      s.urlBase + "/" + filename,
		DataURL:  "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Seed:     seed,
	}
	if s.index != nil {
		rec := Record{
			ID:        id,
			Family:    string(family),
			Mode:      mode,
			Filename:  filename,
			Seed:      seed,
			CreatedAt: time.Now().UTC(),
		}
		// The file is the source of truth; a failed index insert must not
		// lose the artifact.
		if err := s.index.Insert(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("artifact index insert failed")
		}
	}
	return art, nil
}

// Recent lists the newest indexed artifacts, or nil when no index is wired.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Recent(ctx, limit)
}
