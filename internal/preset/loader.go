package preset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/psq/pngsquash/internal/ctxlog"
)

// EnvFile names the environment variable that points at a preset file and
// takes precedence over the default locations.
const EnvFile = "PNGSQUASH_PRESETS"

// fileName is the preset file looked up in the working directory and in
// the user's home directory.
const fileName = ".pngsquash.hcl"

// Find locates the preset file: $PNGSQUASH_PRESETS first, then ./
// then the home directory. It reports false when no file exists.
func Find() (string, bool) {
	if path := os.Getenv(EnvFile); path != "" {
		return path, true
	}
	if _, err := os.Stat(fileName); err == nil {
		return fileName, true
	}
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, fileName)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Load parses and decodes a preset file.
func Load(ctx context.Context, path string) (*File, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading preset file.", "path", path)

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse preset file %s: %s", path, diags.Error())
	}

	var out File
	if diags := gohcl.DecodeBody(f.Body, nil, &out); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode preset file %s: %s", path, diags.Error())
	}

	logger.Debug("Preset file loaded.", "path", path, "presets", len(out.Presets))
	return &out, nil
}
