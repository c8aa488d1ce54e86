// Package detailfile carga el contenido de un config desde disco.
//
// YAML se valida y se envía tal cual. JSON y JSONC se envían como JSON
// estricto: los comentarios y comas finales de JSONC se eliminan.
package detailfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

var ErrUnsupported = errors.New("detailfile: unsupported extension")

// Load lee path y retorna el detail listo para CreateConfig/UpdateConfig.
func Load(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read detail file: %w", err)
	}
	return Parse(filepath.Ext(path), raw)
}

// Parse valida raw según la extensión (con punto, p.ej. ".yaml").
func Parse(ext string, raw []byte) (string, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return "", fmt.Errorf("invalid yaml: %w", err)
		}
		return string(raw), nil
	case ".json", ".jsonc":
		out := jsonc.ToJSON(raw)
		if !json.Valid(out) {
			return "", fmt.Errorf("invalid json in %s detail", ext)
		}
		return strings.TrimSpace(string(out)), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupported, ext)
	}
}
