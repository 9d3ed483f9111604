package planner

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is looked up at the site root. Gitignore syntax. Files it
// matches are excluded from the sync plan and the invalidation digest.
const IgnoreFileName = ".sitedeployignore"

var defaultIgnoreLines = []string{
	IgnoreFileName,
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters files out of planning. The ignore file itself and a few
// OS droppings are always excluded.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// LoadIgnoreList compiles the ignore file at root, if present, on top of the
// default exclusions. A missing file is not an error.
func LoadIgnoreList(root string) (*IgnoreList, error) {
	path := filepath.Join(root, IgnoreFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &IgnoreList{ignore: gitignore.CompileIgnoreLines(defaultIgnoreLines...)}, nil
		}
		return nil, err
	}

	ignore, err := gitignore.CompileIgnoreFileAndLines(path, defaultIgnoreLines...)
	if err != nil {
		return nil, err
	}
	return &IgnoreList{ignore: ignore}, nil
}

func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l == nil || l.ignore == nil {
		return false
	}
	return l.ignore.MatchesPath(relPath)
}
