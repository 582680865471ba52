package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domain "github.com/lintora/lintora/internal/domain/audits"
)

// Extractor unpacks an uploaded ZIP into a per-job workspace directory and
// collects the Solidity files for the producers. The workspace is written
// here once and treated as read-only afterwards.
type Extractor struct {
	MaxFiles         int
	MaxExtractedSize int64
}

func NewExtractor(maxFiles int, maxExtractedSize int64) *Extractor {
	return &Extractor{MaxFiles: maxFiles, MaxExtractedSize: maxExtractedSize}
}

// skip test fixtures and vendored trees, same filter the report consumers expect
var skipSegments = []string{"test", "mock", "node_modules", ".git"}

func skippable(rel string) bool {
	lower := strings.ToLower(rel)
	for _, s := range skipSegments {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Extract implements domain.Extractor.
func (e *Extractor) Extract(ctx context.Context, data []byte, dest string) (*domain.Workspace, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArchive, err)
	}

	if e.MaxFiles > 0 && len(zr.File) > e.MaxFiles {
		return nil, fmt.Errorf("%w: %d entries (max %d)", domain.ErrPayloadTooLarge, len(zr.File), e.MaxFiles)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &domain.Workspace{Root: dest}
	var extracted int64

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := filepath.FromSlash(f.Name)
		target := filepath.Join(dest, name)

		// zip-slip: the resolved path must stay inside the workspace
		rel, err := filepath.Rel(dest, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return nil, fmt.Errorf("%w: entry %q escapes the workspace", domain.ErrInvalidArchive, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create dir: %w", err)
			}
			continue
		}

		if e.MaxExtractedSize > 0 && extracted+int64(f.UncompressedSize64) > e.MaxExtractedSize {
			return nil, fmt.Errorf("%w: extracted size exceeds %d bytes", domain.ErrPayloadTooLarge, e.MaxExtractedSize)
		}

		// each entry only gets the budget the previous entries left over
		var budget int64
		if e.MaxExtractedSize > 0 {
			budget = e.MaxExtractedSize - extracted
		}
		n, err := writeEntry(f, target, budget)
		if err != nil {
			return nil, err
		}
		extracted += n
		ws.TotalFiles++
	}

	if err := e.collectSolidity(ws); err != nil {
		return nil, err
	}
	if len(ws.Files) == 0 {
		return nil, domain.ErrNoSolidityFiles
	}
	return ws, nil
}

// writeEntry extracts one entry, capped at the caller's remaining byte budget,
// and reports how many bytes it actually wrote.
func writeEntry(f *zip.File, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}

	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidArchive, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	// the declared UncompressedSize64 is attacker-controlled; enforce the cap
	// on actual bytes too so lying headers cannot zip-bomb the disk
	var r io.Reader = src
	if budget > 0 {
		r = io.LimitReader(src, budget+1)
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("%w: %v", domain.ErrInvalidArchive, err)
	}
	if budget > 0 && n > budget {
		return n, fmt.Errorf("%w: extracted size exceeds the remaining %d byte budget", domain.ErrPayloadTooLarge, budget)
	}
	return n, nil
}

// collectSolidity walks the workspace and loads every .sol file that is not a
// test/mock/vendored path. Sorted so producer input order is stable.
func (e *Extractor) collectSolidity(ws *domain.Workspace) error {
	var files []domain.SourceFile
	err := filepath.Walk(ws.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		if filepath.Ext(path) != ".sol" {
			return nil
		}
		rel, err := filepath.Rel(ws.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if skippable(rel) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			// unreadable file is skipped, not fatal
			return nil
		}
		files = append(files, domain.SourceFile{Path: path, Rel: rel, Content: string(content)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk workspace: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	ws.Files = files
	return nil
}

// IsZip does a cheap magic-byte check before the archive is accepted into the
// queue. The real validation happens in Extract.
func IsZip(data []byte) bool {
	return len(data) >= 2 && data[0] == 'P' && data[1] == 'K'
}
