package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator is an io.Writer over a log file that rotates by size and
// by calendar day. Rotated files are optionally gzipped and pruned by
// count and age.
type FileRotator struct {
	path       string
	maxBytes   int64
	maxBackups int
	maxAge     int
	compress   bool
	now        func() time.Time

	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time

	// housekeeping runs compression and pruning after a rotation.
	housekeeping sync.WaitGroup
}

// NewFileRotator opens cfg.FilePath for appending, creating its directory.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	r := &FileRotator{
		path:       cfg.FilePath,
		maxBytes:   cfg.MaxSize * 1024 * 1024,
		maxBackups: cfg.MaxBackups,
		maxAge:     cfg.MaxAge,
		compress:   cfg.Compress,
		now:        time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.shouldRotate(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) shouldRotate(writeSize int64) bool {
	// An empty file never rotates, even for one oversized entry.
	if r.size == 0 {
		return false
	}
	if r.maxBytes > 0 && r.size+writeSize > r.maxBytes {
		return true
	}
	now := r.now()
	y1, m1, d1 := r.opened.Date()
	y2, m2, d2 := now.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	rotated := r.rotatedName(r.now())
	if err := os.Rename(r.path, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	r.housekeeping.Add(1)
	go func() {
		defer r.housekeeping.Done()
		if r.compress {
			compressFile(rotated)
		}
		r.prune()
	}()
	return nil
}

// rotatedName returns a free name of the form name-YYYYMMDD-HHMMSS[.N].ext.
func (r *FileRotator) rotatedName(t time.Time) string {
	dir, name, ext := r.split()
	stamp := t.Format("20060102-150405")
	candidate := filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, stamp, ext))
	for i := 1; fileExists(candidate) || fileExists(candidate+".gz"); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%s.%d%s", name, stamp, i, ext))
	}
	return candidate
}

func (r *FileRotator) split() (dir, name, ext string) {
	base := filepath.Base(r.path)
	ext = filepath.Ext(base)
	return filepath.Dir(r.path), strings.TrimSuffix(base, ext), ext
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// compressFile replaces path with path.gz. On failure the uncompressed file is kept.
func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	defer output.Close()

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)

	if _, err := io.Copy(gz, input); err != nil {
		gz.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune removes rotated files beyond maxBackups or older than maxAge days.
func (r *FileRotator) prune() {
	rotated, err := r.rotatedFiles()
	if err != nil {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	files := make([]entry, 0, len(rotated))
	for _, p := range rotated {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, entry{path: p, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	var cutoff time.Time
	if r.maxAge > 0 {
		cutoff = r.now().AddDate(0, 0, -r.maxAge)
	}
	for i, f := range files {
		if (r.maxBackups > 0 && i >= r.maxBackups) || f.modTime.Before(cutoff) {
			os.Remove(f.path)
		}
	}
}

func (r *FileRotator) rotatedFiles() ([]string, error) {
	dir, name, ext := r.split()
	return filepath.Glob(filepath.Join(dir, name+"-*"+ext+"*"))
}

// Files returns the active log file followed by the rotated ones, oldest
// name first.
func (r *FileRotator) Files() ([]string, error) {
	rotated, err := r.rotatedFiles()
	if err != nil {
		return []string{r.path}, err
	}
	sort.Strings(rotated)
	return append([]string{r.path}, rotated...), nil
}

// Close waits for pending housekeeping and closes the file.
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.housekeeping.Wait()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Sync flushes the file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}
