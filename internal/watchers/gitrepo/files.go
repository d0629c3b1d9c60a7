package gitrepo

import (
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/platzerg/Source-Code-Analyse-Tool/internal/logger"
)

// excludeDirs are pruned from the walk: VCS internals, dependency trees
// and build output carry no indexable source.
var excludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

// supportedExtensions is the source file allow-list.
var supportedExtensions = map[string]bool{
	".py": true, ".ts": true, ".js": true, ".tsx": true, ".jsx": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true,
	".go": true, ".rs": true, ".java": true, ".kt": true, ".php": true,
	".rb": true, ".cs": true, ".sh": true, ".bash": true,
	".sql": true, ".html": true, ".css": true, ".md": true, ".json": true,
	".yaml": true, ".yml": true, ".env": true,
}

// isSupported reports whether the file should be indexed: by extension
// first, then by sniffing the content for a text type. Extensionless
// files like Makefiles pass the sniff; binaries do not.
func isSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if supportedExtensions[ext] {
		return true
	}
	return sniffsAsText(path)
}

func sniffsAsText(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(buf[:n]), "text/")
}

// listRepoFiles walks a working tree and returns the relative paths of
// every supported file, with excluded directories pruned.
func listRepoFiles(repoPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("gitrepo: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if excludeDirs[d.Name()] && path != repoPath {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSupported(path) {
			return nil
		}
		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}
