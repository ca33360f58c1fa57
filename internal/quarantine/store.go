package quarantine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Hara602/downloadSentry/internal/analysis"
	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/sysutil"
)

// maxCandidates 同名冲突最多尝试 name (1) .. name (999)
const maxCandidates = 1000

// Store 把检测到的文件移入隔离目录. 隔离目录本身就是持久化记录.
type Store struct {
	dir       string
	inspector *analysis.TypeInspector
	log       *zap.Logger
	mu        sync.Mutex
	now       func() time.Time
	move      func(src, dst string) error
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = sysutil.OrNop(l) }
}

// WithInspector annotates quarantined files with their detected content type.
func WithInspector(i *analysis.TypeInspector) Option {
	return func(s *Store) { s.inspector = i }
}

func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:  dir,
		log:  zap.NewNop(),
		now:  time.Now,
		move: renameNoReplace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

// Quarantine moves ev.SourcePath into the quarantine directory.
// It never returns an error; the outcome is carried by the record.
func (s *Store) Quarantine(ev model.DetectionEvent) model.QuarantineRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := model.QuarantineRecord{
		EventID:      ev.ID,
		OriginalPath: ev.SourcePath,
		DetectedAt:   ev.Timestamp,
	}
	finish := func(outcome model.Outcome, err error) model.QuarantineRecord {
		rec.Outcome = outcome
		if err != nil {
			rec.Reason = err.Error()
		}
		rec.CompletedAt = s.now()
		return rec
	}

	if err := sysutil.EnsureDir(s.dir, 0o700); err != nil {
		s.log.Error("Quarantine directory unavailable", zap.String("dir", s.dir), zap.Error(err))
		return finish(model.OutcomeFailed, err)
	}

	dst, err := s.relocate(ev.SourcePath)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrSourceMissing):
		// 写入方已删除或改名, 属于正常竞争
		s.log.Info("Source vanished before quarantine", zap.String("file", ev.SourcePath))
		return finish(model.OutcomeSourceMissing, nil)
	default:
		s.log.Error("Failed to quarantine file", zap.String("file", ev.SourcePath), zap.Error(err))
		return finish(model.OutcomeFailed, err)
	}

	rec.QuarantinePath = dst
	if s.inspector != nil {
		res, err := s.inspector.Inspect(dst)
		if err != nil {
			s.log.Debug("filetype inspect failed", zap.String("file", dst), zap.Error(err))
		} else {
			rec.ContentType = res.ContentType
			rec.Masquerade = res.Masquerade
			if res.Masquerade {
				s.log.Warn("Quarantined file header does not match its name",
					zap.String("file", dst),
					zap.String("header", res.RealExt),
					zap.String("declared", res.DeclaredExt))
			}
		}
	}

	s.log.Info("🔒 File quarantined", zap.String("from", ev.SourcePath), zap.String("to", dst))
	return finish(model.OutcomeQuarantined, nil)
}

// relocate claims the first free candidate name and moves src onto it.
func (s *Store) relocate(src string) (string, error) {
	base := filepath.Base(src)
	if base == "." || base == string(filepath.Separator) {
		return "", errors.Wrapf(model.ErrRelocationFailed, "invalid source path %q", src)
	}

	for n := 0; n < maxCandidates; n++ {
		dst := filepath.Join(s.dir, candidateName(base, n))
		err := s.move(src, dst)
		if err == nil {
			return dst, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Lstat(src); errors.Is(statErr, fs.ErrNotExist) {
				return "", model.ErrSourceMissing
			}
		}
		return "", errors.Wrapf(model.ErrRelocationFailed, "move %s: %v", src, err)
	}
	return "", errors.Wrapf(model.ErrRelocationFailed, "no free name for %s after %d candidates", base, maxCandidates)
}

// candidateName: report.pdf, report (1).pdf, report (2).pdf ...
func candidateName(base string, n int) string {
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// dotfile such as ".env"
		stem, ext = base, ""
	}
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}

// Entry 隔离目录中的一个文件
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the quarantined artifacts, oldest first.
func (s *Store) List() ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(model.ErrDirectoryUnavailable, "read %s: %v", s.dir, err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].Name < out[j].Name
		}
		return out[i].ModTime.Before(out[j].ModTime)
	})
	return out, nil
}
