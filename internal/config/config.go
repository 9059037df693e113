// Package config loads the three configuration surfaces: the HCL settings
// file, the JSON source map, and the JSON dependency map.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/vk/factbuild/internal/source"
)

// Error wraps any malformed or missing configuration. Fatal: the run
// aborts before loading sources.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Settings is the decoded settings.hcl. Every attribute is optional; CLI
// flags override whatever is set here.
type Settings struct {
	Period             string   `hcl:"period,optional"`
	OnStaleCache       string   `hcl:"on_stale_cache,optional"`
	LogLevel           string   `hcl:"log_level,optional"`
	LogFormat          string   `hcl:"log_format,optional"`
	DataRootCandidates []string `hcl:"data_root_candidates,optional"`
	SourcesMap         string   `hcl:"sources_map,optional"`
	Dependencies       string   `hcl:"dependencies,optional"`
}

// LoadSettings decodes the settings file. A missing file yields zero-value
// settings (everything defaulted or supplied by flags); a present but
// malformed file is a config error.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &s, nil
	}
	if err := hclsimple.DecodeFile(path, nil, &s); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	// Map file paths are relative to the settings file's directory.
	dir := filepath.Dir(path)
	if s.SourcesMap != "" && !filepath.IsAbs(s.SourcesMap) {
		s.SourcesMap = filepath.Join(dir, s.SourcesMap)
	}
	if s.Dependencies != "" && !filepath.IsAbs(s.Dependencies) {
		s.Dependencies = filepath.Join(dir, s.Dependencies)
	}
	return &s, nil
}

// LoadSourceMap decodes the JSON source map: source name → pattern or path.
func LoadSourceMap(path string) (map[string]source.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	var m map[string]source.Spec
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	for name, spec := range m {
		if err := spec.Validate(); err != nil {
			return nil, &Error{Path: path, Err: fmt.Errorf("source %q: %w", name, err)}
		}
	}
	return m, nil
}

// LoadDependencyMap decodes the JSON dependency map: fact name → ordered
// list of required input names.
func LoadDependencyMap(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	for fact, reqs := range m {
		if len(reqs) == 0 {
			return nil, &Error{Path: path, Err: fmt.Errorf("fact %q declares no dependencies", fact)}
		}
	}
	return m, nil
}
