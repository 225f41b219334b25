package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meshwire/wgmesh/pkg/model"
)

// loadMeshSpec reads a MeshSpec from path, accepting either JSON or YAML
// based on the file extension, mirroring the CLI config loading in the
// pack's keymaster/warren tooling.
func loadMeshSpec(path string) (model.MeshSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.MeshSpec{}, fmt.Errorf("read spec file: %w", err)
	}

	var spec model.MeshSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return model.MeshSpec{}, fmt.Errorf("parse yaml spec: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &spec); err != nil {
			return model.MeshSpec{}, fmt.Errorf("parse json spec: %w", err)
		}
	}
	return spec, nil
}
