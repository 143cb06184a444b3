package reconcile

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Assets is a directory holding one icon file per roster entry, named after
// the entry (for example Mario.png).
type Assets struct {
	Dir string
}

// Files maps entry names to icon file paths.
func (a Assets) Files() (map[string]string, error) {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read asset dir %v", a.Dir)
	}

	files := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		files[stem] = filepath.Join(a.Dir, name)
	}
	return files, nil
}

// DataURI reads an icon file and encodes it for upload.
func DataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read icon %v", path)
	}
	mime := http.DetectContentType(data)
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
