package reader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ReplayReader reads the header and chunks of a single replay file
type ReplayReader struct {
	closer io.Closer
	reader *bufio.Reader
	path   string
	header *Header
	offset int64
	closed bool
}

// countingReader tracks the file offset for chunk positions
type countingReader struct {
	r *bufio.Reader
	n *int64
}

func (c countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	*c.n += int64(n)
	return n, err
}

// Open opens a replay file and reads its header
func Open(path string) (*ReplayReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file %s: %w", path, err)
	}

	r, err := newReplayReader(file, path)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewReader reads a replay from an arbitrary stream. name is used in
// messages only.
func NewReader(src io.Reader, name string) (*ReplayReader, error) {
	return newReplayReader(src, name)
}

func newReplayReader(src io.Reader, name string) (*ReplayReader, error) {
	r := &ReplayReader{
		reader: bufio.NewReaderSize(src, 1024*1024), // 1MB buffer for performance
		path:   name,
	}

	header, err := ReadHeader(r.counting())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	r.header = header
	return r, nil
}

func (r *ReplayReader) counting() io.Reader {
	return countingReader{r: r.reader, n: &r.offset}
}

// Header returns the file header
func (r *ReplayReader) Header() *Header {
	return r.header
}

// Next reads and returns the next chunk of the replay
// Returns io.EOF when there are no more chunks
func (r *ReplayReader) Next() (*Chunk, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	offset := r.offset
	chunk, err := ReadChunk(r.counting())
	if err != nil {
		return nil, err
	}
	chunk.Offset = offset
	return chunk, nil
}

// Close closes the replay file
func (r *ReplayReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Path returns the path of the replay file
func (r *ReplayReader) Path() string {
	return r.path
}

// ReplaySet lists the replay files of a directory
// Files are returned in sorted order, one reader at a time
type ReplaySet struct {
	dir     string
	files   []string
	fileIdx int
}

// NewReplaySet opens a directory containing replay files (.replay)
func NewReplaySet(dir string) (*ReplaySet, error) {
	// Check if directory exists
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	pattern := filepath.Join(dir, "*.replay")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list replay files: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no .replay files found in %s", dir)
	}

	sort.Strings(files)

	return &ReplaySet{
		dir:   dir,
		files: files,
	}, nil
}

// Next opens the next replay of the set
// Returns io.EOF when all files have been opened
func (rs *ReplaySet) Next() (*ReplayReader, error) {
	if rs.fileIdx >= len(rs.files) {
		return nil, io.EOF
	}
	path := rs.files[rs.fileIdx]
	rs.fileIdx++
	return Open(path)
}

// Files returns the list of replay files in this set
func (rs *ReplaySet) Files() []string {
	return rs.files
}

// FileCount returns the total number of files in this set
func (rs *ReplaySet) FileCount() int {
	return len(rs.files)
}
