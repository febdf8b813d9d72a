// Package media keeps product and section attachments on disk under the
// configured media directory.
package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	"github.com/m3rciful/doorshop/internal/shop/model"
)

// Folders under the media directory.
const (
	Products = "products"
	Sections = "sections"
)

// Downloader fetches a Telegram file to a local path.
type Downloader interface {
	Download(ctx context.Context, fileID, dest string) error
}

// Upload is an incoming attachment before it is stored.
type Upload struct {
	Kind      model.MediaKind
	FileID    string
	MessageID int
}

// Ref converts a stored media row into a gateway attachment. The Telegram
// file id is preferred; the local copy is the fallback.
func Ref(m model.Media) gateway.Media {
	kind := gateway.Photo
	if m.Kind == model.MediaVideo {
		kind = gateway.Video
	}
	return gateway.Media{Kind: kind, FileID: m.FileID, Path: m.FilePath}
}

// Store saves and removes media files.
type Store struct {
	dir string
	dl  Downloader
}

// New returns a Store rooted at dir.
func New(dir string, dl Downloader) *Store {
	return &Store{dir: dir, dl: dl}
}

// Dir returns the media root.
func (s *Store) Dir() string { return s.dir }

// Path returns where an upload lands inside folder. The file id plus the
// message id keeps names unique.
func (s *Store) Path(folder string, u Upload) string {
	ext := ".jpg"
	if u.Kind == model.MediaVideo {
		ext = ".mp4"
	}
	return filepath.Join(s.dir, folder, u.FileID+"_"+strconv.Itoa(u.MessageID)+ext)
}

// Save downloads u into folder and returns the final path. The file is
// fetched under a temporary name and renamed once complete.
func (s *Store) Save(ctx context.Context, folder string, u Upload) (string, error) {
	if u.FileID == "" {
		return "", errors.New("media: empty file id")
	}
	dest := s.Path(folder, u)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("media dir: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(dest), "."+uuid.NewString()+".part")
	if err := s.dl.Download(ctx, u.FileID, tmp); err != nil {
		_ = os.Remove(tmp)
		logger.Warn(ctx, logger.CompMedia, "media.download",
			slog.String("kind", string(u.Kind)),
			slog.String("folder", folder),
			logger.Err(err),
		)
		return "", fmt.Errorf("download %s: %w", u.Kind, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("media rename: %w", err)
	}

	logger.Debug(ctx, logger.CompMedia, "media.saved",
		slog.String("kind", string(u.Kind)),
		slog.String("path", dest),
	)
	return dest, nil
}

// Remove deletes every path and returns how many files were removed.
// Failures are logged and skipped; a missing file is not counted.
func (s *Store) Remove(ctx context.Context, paths ...string) int {
	removed := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
			logger.Debug(ctx, logger.CompMedia, "media.remove",
				slog.String("path", p),
				slog.String("outcome", "missing"),
			)
		default:
			logger.Warn(ctx, logger.CompMedia, "media.remove",
				slog.String("path", p),
				logger.Err(err),
			)
		}
	}
	if len(paths) > 0 {
		logger.Info(ctx, logger.CompMedia, "media.removed",
			slog.Int("requested", len(paths)),
			slog.Int("removed", removed),
		)
	}
	return removed
}
