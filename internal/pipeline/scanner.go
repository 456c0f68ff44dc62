package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source represents a discovered image file.
type Source struct {
	// AbsPath is the path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the input directory it was found
	// in, or the base name for files given directly.
	RelPath string
	// Key is RelPath without extension, using forward slashes. Sources
	// whose outputs would share a name keep their extension.
	Key string
	// Size is the file size in bytes.
	Size int64
}

// imageExtensions lists recognized image file extensions. Directory
// walks only pick these up; files named explicitly are always taken and
// left to format detection.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".avif": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// ScanInputs expands files and directories into image sources, in the
// order given. Directories are walked recursively, skipping hidden ones.
func ScanInputs(paths []string) ([]Source, error) {
	var sources []Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			base := filepath.Base(p)
			sources = append(sources, Source{
				AbsPath: p,
				RelPath: base,
				Key:     strings.TrimSuffix(base, filepath.Ext(base)),
				Size:    info.Size(),
			})
			continue
		}
		found, err := ScanImages(p)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		sources = append(sources, found...)
	}
	return sources, nil
}

// ScanImages walks the input directory and returns all image sources.
func ScanImages(inputDir string) ([]Source, error) {
	var sources []Source

	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(d.Name(), ".") && path != inputDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}

		sources = append(sources, Source{
			AbsPath: path,
			RelPath: filepath.ToSlash(relPath),
			Key:     filepath.ToSlash(strings.TrimSuffix(relPath, filepath.Ext(relPath))),
			Size:    info.Size(),
		})
		return nil
	})

	return sources, err
}
