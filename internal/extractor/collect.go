package extractor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// CollectFiles expands roots into the files to scan. A file root is taken as
// is; a directory is walked recursively in lexical order, skipping editor
// lock files (leading '~') and names without an extension. Paths are
// de-duplicated, keeping the first occurrence.
func CollectFiles(fsys afero.Fs, roots ...string) ([]string, error) {
	var files []string

	for _, root := range roots {
		info, err := fsys.Stat(root)
		if err != nil {
			return nil, failure.Translate(err, ErrUnreadableDocument,
				failure.Message("cannot access input path"),
				failure.Context{"path": root},
			)
		}

		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if info.IsDir() || !scannableName(info.Name()) {
				return nil
			}

			files = append(files, path)

			return nil
		})
		if err != nil {
			return nil, failure.Translate(err, ErrUnreadableDocument,
				failure.Message("cannot walk directory"),
				failure.Context{"path": root},
			)
		}
	}

	return lo.Uniq(files), nil
}

func scannableName(name string) bool {
	return !strings.HasPrefix(name, "~") && filepath.Ext(name) != ""
}
