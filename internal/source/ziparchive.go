package source

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// ExtractMember unpacks the single member with the given extension from a
// zipped per-region bundle. The registry ships one vector file per archive;
// zero or multiple candidates mean the bundle shape changed upstream.
func ExtractMember(name string, data []byte, ext string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("source: open zip %s: %w", name, err)
	}

	var match *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ext) {
			if match != nil {
				return nil, fmt.Errorf("source: zip %s has multiple %s members", name, ext)
			}
			match = f
		}
	}
	if match == nil {
		return nil, fmt.Errorf("source: zip %s has no %s member", name, ext)
	}

	rc, err := match.Open()
	if err != nil {
		return nil, fmt.Errorf("source: open zip member %s: %w", match.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("source: read zip member %s: %w", match.Name, err)
	}
	return content, nil
}
