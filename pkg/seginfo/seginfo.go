// Package seginfo discovers and names the data files that make up an
// Ignite log directory.
//
// Filename Format: NNNNNNNNN.data
//
// Where NNNNNNNNN is a zero-padded 9-digit decimal file id. File ids are
// strictly increasing within a directory generation; the file with the
// largest id is the active file, every other file is immutable. Unlike
// the segment-file scheme this package originally implemented, ids carry
// no prefix or embedded timestamp: lexicographic and numeric ordering of
// the id coincide, which is what lets GetLatestFileName pick the latest
// file with a plain string sort; ListFileIDs sorts the parsed ids
// numerically.
package seginfo

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/iamNilotpal/ignite/pkg/filesys"
)

// DataFileExtension is the fixed suffix every data file name carries.
const DataFileExtension = ".data"

// idWidth is the zero-padded width of the decimal file id component.
const idWidth = 9

// GetLatestFileID discovers and analyzes the most recent data file in the
// specified directory.
//
// Returns:
//   - uint32: the id of the latest file (0 if no files exist yet).
//   - os.FileInfo: metadata for that file (nil if no files exist).
//   - error: any error encountered while scanning the directory.
func GetLatestFileID(dataDir string) (uint32, os.FileInfo, error) {
	if strings.TrimSpace(dataDir) == "" {
		return 0, nil, fmt.Errorf("dataDir must be non-empty")
	}

	latestPath, err := GetLatestFileName(dataDir)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to discover latest data file: %w", err)
	}

	if latestPath == "" {
		return 0, nil, nil
	}

	id, err := ParseFileID(latestPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to parse file id from %s: %w", latestPath, err)
	}

	info, err := GetFileInfo(latestPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to retrieve file info for %s: %w", latestPath, err)
	}

	return id, info, nil
}

// GetLatestFileName searches dataDir and returns the full path of the data
// file with the highest id, or "" if none exist. Zero-padded, fixed-width
// ids make lexicographic sort equivalent to numeric sort.
func GetLatestFileName(dataDir string) (string, error) {
	if strings.TrimSpace(dataDir) == "" {
		return "", fmt.Errorf("dataDir must be non-empty")
	}

	searchPattern := filepath.Join(dataDir, "*"+DataFileExtension)

	matches, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return "", fmt.Errorf("failed to read data directory with pattern %s: %w", searchPattern, err)
	}

	if len(matches) == 0 {
		return "", nil
	}

	slices.Sort(matches)
	return matches[len(matches)-1], nil
}

// ListFileIDs returns every data file id present in dataDir, ascending.
func ListFileIDs(dataDir string) ([]uint32, error) {
	searchPattern := filepath.Join(dataDir, "*"+DataFileExtension)

	matches, err := filesys.ReadDir(searchPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory with pattern %s: %w", searchPattern, err)
	}

	ids := make([]uint32, 0, len(matches))
	for _, m := range matches {
		id, err := ParseFileID(m)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids, nil
}

// GenerateName builds the nine-digit zero-padded filename for the given id.
func GenerateName(id uint32) string {
	return fmt.Sprintf("%0*d%s", idWidth, id, DataFileExtension)
}

// ParseFileID extracts the file id from a data file's path or bare name.
func ParseFileID(fullPath string) (uint32, error) {
	_, filename := filepath.Split(fullPath)

	if !strings.HasSuffix(filename, DataFileExtension) {
		return 0, fmt.Errorf("filename %s does not end with expected suffix %s", filename, DataFileExtension)
	}

	idStr := strings.TrimSuffix(filename, DataFileExtension)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse file id %q as integer: %w", idStr, err)
	}

	return uint32(id), nil
}

// GetFileInfo safely retrieves file system metadata for a given path.
func GetFileInfo(filePath string) (os.FileInfo, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info for %s: %w", filePath, err)
	}

	return stat, nil
}
