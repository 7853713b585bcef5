package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DetectProjectName infers the project name from common manifest files in
// dir, checking package.json, pyproject.toml, Cargo.toml and go.mod in that
// order. Falls back to the directory base name. Manifest read errors are
// silently ignored.
func DetectProjectName(dir string) string {
	if name := detectFromPackageJSON(dir); name != "" {
		return name
	}
	if name := detectFromPyproject(dir); name != "" {
		return name
	}
	if name := detectFromCargo(dir); name != "" {
		return name
	}
	if name := detectFromGoMod(dir); name != "" {
		return name
	}
	return filepath.Base(dir)
}

func detectFromPackageJSON(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return p.Name
}

func detectFromPyproject(dir string) string {
	var p struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(filepath.Join(dir, "pyproject.toml"), &p); err != nil {
		return ""
	}
	if p.Project.Name != "" {
		return p.Project.Name
	}
	return p.Tool.Poetry.Name
}

func detectFromCargo(dir string) string {
	var c struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	if _, err := toml.DecodeFile(filepath.Join(dir, "Cargo.toml"), &c); err != nil {
		return ""
	}
	return c.Package.Name
}

func detectFromGoMod(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if modpath, ok := strings.CutPrefix(line, "module "); ok {
			modpath = strings.TrimSpace(modpath)
			if i := strings.LastIndex(modpath, "/"); i >= 0 {
				return modpath[i+1:]
			}
			return modpath
		}
	}
	return ""
}
