package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/scalegrid/internal/config"
	"github.com/vk/scalegrid/internal/ctxlog"
	"github.com/vk/scalegrid/internal/fsutil"
)

// Extension is the file extension of experiment definitions.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	evalCtx *hcl.EvalContext
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a loader whose expressions can read env through the
// `env` object. A nil env exposes an empty object.
func NewLoader(env map[string]string) *Loader {
	return &Loader{evalCtx: evalContext(env)}
}

// Load parses every .hcl file under paths and merges their experiment
// blocks. Experiment names must be unique across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %v", Extension, paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := &config.Model{}
	origin := make(map[string]string)
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, l.evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, block := range root.Experiments {
			if prev, dup := origin[block.Name]; dup {
				return nil, fmt.Errorf("experiment %q defined in both %s and %s", block.Name, prev, file)
			}
			exp, err := l.translateExperiment(ctx, block)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			exp.Source = file
			origin[block.Name] = file
			model.Experiments = append(model.Experiments, exp)
		}
	}

	logger.Debug("HCL loading complete.", "experiments", len(model.Experiments))
	return model, nil
}

// findAllHCLFiles returns the .hcl files under every path, each once.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	for _, path := range paths {
		files, err := fsutil.FindFilesByExtension(path, Extension)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		for _, f := range files {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				all = append(all, f)
			}
		}
	}
	return all, nil
}
