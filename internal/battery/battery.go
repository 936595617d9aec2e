// Package battery keeps battery backed cartridge RAM in a file that is memory
// mapped for the lifetime of the cartridge, so RAM writes land in the save
// file without an explicit save step.
package battery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
)

// ErrEmpty is returned when a zero sized battery file is requested.
var ErrEmpty = errors.New("battery RAM size is zero")

type File struct {
	file *os.File
	mmap mmap.MMap
	path string
}

// PathFor returns the save file path next to a ROM file.
func PathFor(romPath string) string {
	name := filepath.Base(romPath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(filepath.Dir(filepath.Clean(romPath)), name+".sav")
}

// Open maps path as size bytes of RAM. A missing file is created, a shorter
// one is grown with zero bytes. Existing contents are kept.
func Open(path string, size int) (*File, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening battery file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("getting battery file info: %w", err)
	}
	if info.Size() < int64(size) {
		if err := file.Truncate(int64(size)); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("resizing battery file: %w", err)
		}
	}

	m, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mapping battery file: %w", err)
	}

	return &File{
		file: file,
		mmap: m,
		path: path,
	}, nil
}

// Bytes returns the mapped RAM. The slice is invalid after Close.
func (f *File) Bytes() []byte { return f.mmap }

func (f *File) Path() string { return f.path }

// Flush writes dirty pages back to the file.
func (f *File) Flush() error {
	if err := f.mmap.Flush(); err != nil {
		return fmt.Errorf("flushing battery file: %w", err)
	}
	return nil
}

func (f *File) Close() error {
	err := f.Flush()
	if uerr := f.mmap.Unmap(); uerr != nil && err == nil {
		err = fmt.Errorf("unmapping battery file: %w", uerr)
	}
	if cerr := f.file.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing battery file: %w", cerr)
	}
	return err
}
