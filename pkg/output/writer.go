package output

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

type Compression string

const (
	None Compression = "none"
	Gzip Compression = "gzip"
	Zstd Compression = "zstd"

	fileExt     = ".sql"
	checksumExt = ".xxh3"
)

var ErrUnknownCompression = errors.New("unknown compression")

// ParseCompression accepts none, gzip, gz, zstd and zst; empty means none.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	}

	return None, errors.Wrapf(ErrUnknownCompression, "%q", s)
}

// Ext returns the file extension appended for the compression.
func (c Compression) Ext() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	}

	return ""
}

type Option func(o *options)

type options struct {
	compression Compression
	checksum    bool
}

func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithChecksum writes an xxh3 sidecar next to every file on Close.
func WithChecksum(enabled bool) Option {
	return func(o *options) {
		o.checksum = enabled
	}
}

func newOptions(opts []Option) options {
	o := options{compression: None}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// FileWriter writes one dump file, compressing and hashing on the fly.
type FileWriter struct {
	path string
	file *os.File
	enc  io.WriteCloser
	hash *xxh3.Hasher
	w    io.Writer
	n    int64
}

// NewFileWriter creates dir if needed and opens dir/file with the
// compression extension appended.
func NewFileWriter(dir, file string, opts ...Option) (*FileWriter, error) {
	o := newOptions(opts)

	err := createDir(dir)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(dir, file+o.compression.Ext())

	f, err := os.Create(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create file %s", filePath)
	}

	writer := &FileWriter{
		path: filePath,
		file: f,
	}

	var dst io.Writer = f

	if o.checksum {
		writer.hash = xxh3.New()
		dst = io.MultiWriter(f, writer.hash)
	}

	switch o.compression {
	case Gzip:
		writer.enc = gzip.NewWriter(dst)
	case Zstd:
		writer.enc, err = zstd.NewWriter(dst)
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, "unable to create zstd encoder")
		}
	}

	writer.w = dst
	if writer.enc != nil {
		writer.w = writer.enc
	}

	return writer, nil
}

// Path returns the path of the written file.
func (w *FileWriter) Path() string {
	return w.path
}

// Written returns the number of uncompressed bytes written so far.
func (w *FileWriter) Written() int64 {
	return w.n
}

func (w *FileWriter) Write(b []byte) (int, error) {
	n, err := w.w.Write(b)
	w.n += int64(n)

	return n, err
}

func (w *FileWriter) Close() error {
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			_ = w.file.Close()
			return errors.Wrapf(err, "unable to flush %s", w.path)
		}
	}

	if err := w.file.Close(); err != nil {
		return errors.Wrapf(err, "unable to close %s", w.path)
	}

	if w.hash == nil {
		return nil
	}

	sum := fmt.Sprintf("%016x  %s\n", w.hash.Sum64(), filepath.Base(w.path))

	err := os.WriteFile(w.path+checksumExt, []byte(sum), 0644)
	if err != nil {
		return errors.Wrapf(err, "unable to write checksum of %s", w.path)
	}

	return nil
}

// DirWriter writes every table into its own file. WriteTable is safe for
// concurrent use, so it can be called from dump.Dumper.OnTable.
type DirWriter struct {
	dir  string
	opts []Option

	// files maps table names to their writers
	files *sync.Map
	// taken holds lower-cased file names already assigned to a table
	taken map[string]bool
	mu    *sync.Mutex
}

func NewDirWriter(dir string, opts ...Option) (*DirWriter, error) {
	err := createDir(dir)
	if err != nil {
		return nil, err
	}

	writer := &DirWriter{
		dir:   dir,
		opts:  opts,
		files: &sync.Map{},
		taken: make(map[string]bool),
		mu:    &sync.Mutex{},
	}

	return writer, nil
}

// WriteFile writes content to the file of the named table, appending when
// the table was already written. Tables whose file names collide get a
// numeric suffix instead of sharing one file.
func (w *DirWriter) WriteFile(name, content string) error {
	if content == "" {
		return nil
	}

	f, err := w.getFile(name)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	_, err = io.WriteString(f, content)
	if err != nil {
		return errors.Wrapf(err, "unable to write %s", f.Path())
	}

	return nil
}

// Files returns the writers opened so far.
func (w *DirWriter) Files() []*FileWriter {
	var files []*FileWriter

	w.files.Range(func(key, value interface{}) bool {
		files = append(files, value.(*FileWriter))
		return true
	})

	return files
}

// Close closes every file, even when some of them fail, and returns the
// joined errors.
func (w *DirWriter) Close() error {
	var errs []error

	w.files.Range(func(key, value interface{}) bool {
		file, ok := value.(*FileWriter)
		if !ok {
			errs = append(errs, fmt.Errorf("key %v, value %v is not a file writer", key, value))
			return true
		}

		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}

		return true
	})

	return stderrors.Join(errs...)
}

func (w *DirWriter) getFile(table string) (*FileWriter, error) {
	entry, ok := w.files.Load(table)
	if ok {
		return entry.(*FileWriter), nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// another goroutine may have created it meanwhile
	if entry, ok := w.files.Load(table); ok {
		return entry.(*FileWriter), nil
	}

	fileName := w.freeName(table)

	file, err := NewFileWriter(w.dir, fileName, w.opts...)
	if err != nil {
		return nil, err
	}

	w.taken[strings.ToLower(fileName)] = true
	w.files.Store(table, file)

	return file, nil
}

// freeName returns FileName(table), or name_N.sql when another table already
// owns it. Names are compared case-insensitively. Must be called under mu.
func (w *DirWriter) freeName(table string) string {
	fileName := FileName(table)
	base := strings.TrimSuffix(fileName, fileExt)

	for i := 1; w.taken[strings.ToLower(fileName)]; i++ {
		fileName = fmt.Sprintf("%s_%d%s", base, i, fileExt)
	}

	return fileName
}

// FileName turns a table name into a safe file name with the .sql extension.
func FileName(table string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}

		return r
	}, table)

	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}

	return name + fileExt
}

func createDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		if !os.IsExist(err) {
			return errors.Wrapf(err, "unable to create directory %s", dir)
		}
	}

	return nil
}
