package pysrc

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"archmap/pkg/errors"
)

// ScanOptions configures a source scan.
type ScanOptions struct {
	// Root is the package root directory. Required; a missing root is
	// the only fatal scanner error.
	Root string

	// Subdir restricts the scan to a subdirectory of Root.
	Subdir string

	// FilePrefix keeps only files whose root-relative path starts with
	// this prefix (the original service scanned "app" this way).
	FilePrefix string

	// Workers bounds the parallel parse pool. Zero means NumCPU.
	Workers int

	// Logger receives debug output. Nil means no logging.
	Logger *log.Logger
}

// ScanResult holds the parsed modules and any per-file diagnostics.
type ScanResult struct {
	// Modules in lexicographic order of root-relative path. Files that
	// could not be read or parsed are absent here and present in
	// Diagnostics instead.
	Modules []*Module

	// Diagnostics records skipped files, in the same path order.
	Diagnostics []errors.Diagnostic
}

// Scan walks Root for *.py files and parses them in parallel. The file
// list is fixed and sorted before any parsing starts, so Modules keeps
// a deterministic order regardless of worker scheduling.
func Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(opts.Root)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeRootNotFound, "package root %s not found", opts.Root)
	}

	paths, err := listSourceFiles(opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "walk %s", opts.Root)
	}
	sort.Strings(paths)

	if opts.Logger != nil {
		opts.Logger.Debug("scanning python sources", "root", opts.Root, "files", len(paths))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// One slot per file keeps result order independent of scheduling.
	type slot struct {
		module *Module
		diag   *errors.Diagnostic
	}
	slots := make([]slot, len(paths))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, relPath := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			src, err := os.ReadFile(filepath.Join(opts.Root, filepath.FromSlash(relPath)))
			if err != nil {
				d := errors.Diag(errors.ErrCodeSourceRead, relPath, "read failed: %v", err)
				slots[i].diag = &d
				return nil
			}
			if !utf8.Valid(src) {
				d := errors.Diag(errors.ErrCodeSourceRead, relPath, "not valid UTF-8")
				slots[i].diag = &d
				return nil
			}

			m, err := Parse(egCtx, ModuleName(relPath), relPath, src)
			if err != nil {
				d := errors.Diag(errors.ErrCodeParse, relPath, "%s", errors.UserMessage(err))
				slots[i].diag = &d
				return nil
			}
			slots[i].module = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &ScanResult{}
	for _, s := range slots {
		if s.module != nil {
			res.Modules = append(res.Modules, s.module)
		}
		if s.diag != nil {
			res.Diagnostics = append(res.Diagnostics, *s.diag)
			if opts.Logger != nil {
				opts.Logger.Warn("skipped source file", "file", s.diag.File, "code", s.diag.Code)
			}
		}
	}
	return res, nil
}

// listSourceFiles collects root-relative paths of candidate *.py files.
func listSourceFiles(opts ScanOptions) ([]string, error) {
	start := opts.Root
	base := ""
	if opts.Subdir != "" {
		start = filepath.Join(opts.Root, filepath.FromSlash(opts.Subdir))
		base = strings.TrimSuffix(filepath.ToSlash(opts.Subdir), "/") + "/"
		if _, err := os.Stat(start); err != nil {
			// Missing subdir yields an empty scan, not a failure.
			return nil, nil
		}
	}

	var paths []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Virtualenvs and VCS metadata are never part of the package.
			name := d.Name()
			if name == ".git" || name == "__pycache__" || name == ".venv" || name == "venv" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		rel, err := filepath.Rel(start, path)
		if err != nil {
			return err
		}
		relPath := base + filepath.ToSlash(rel)
		if opts.FilePrefix != "" && !strings.HasPrefix(relPath, opts.FilePrefix) {
			return nil
		}
		paths = append(paths, relPath)
		return nil
	})
	return paths, err
}
