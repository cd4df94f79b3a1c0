package versionfile

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Rewrite overwrites a version string in the file at path. For *.json
// files match is a key path and the value at that path is replaced; for
// any other file match is a regular expression and its first occurrence
// is replaced by value. The file mode is preserved.
func Rewrite(path, match, value string) error {
	info, err := os.Stat(path)
	if err != nil {
		return goerr.Wrap(err, "failed to stat version file", goerr.V("path", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read version file", goerr.V("path", path))
	}

	var out []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		out, err = rewriteJSON(data, match, value)
	} else {
		out, err = rewriteText(data, match, value)
	}
	if err != nil {
		return goerr.Wrap(err, "failed to rewrite version",
			goerr.V("path", path),
			goerr.V("match", match),
		)
	}

	if err := os.WriteFile(path, out, info.Mode()); err != nil {
		return goerr.Wrap(err, "failed to write version file", goerr.V("path", path))
	}
	return nil
}

func rewriteJSON(data []byte, keyPath, value string) ([]byte, error) {
	if !gjson.GetBytes(data, keyPath).Exists() {
		return nil, goerr.New("key path not found in JSON")
	}
	out, err := sjson.SetBytes(data, keyPath, value)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to set JSON value")
	}
	return out, nil
}

func rewriteText(data []byte, pattern, value string) ([]byte, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid match pattern")
	}
	loc := re.FindIndex(data)
	if loc == nil {
		return nil, goerr.New("pattern not found in file")
	}

	out := make([]byte, 0, len(data)-(loc[1]-loc[0])+len(value))
	out = append(out, data[:loc[0]]...)
	out = append(out, value...)
	out = append(out, data[loc[1]:]...)
	return out, nil
}
