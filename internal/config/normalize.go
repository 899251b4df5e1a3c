package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// normalizeDaemons turns the raw Fleet.Daemons map into a normalized
// DaemonConfig list, applying fleet-wide defaults (mirrors the Python
// original's global-default propagation into each per-daemon entry).
// Daemons whose declared directory, target, or requirements file is missing
// are dropped with a warning rather than failing the whole load, matching
// spec.md's DAEMON_DIR_NOT_FOUND / TARGET_NOT_FOUND / REQUIREMENTS_NOT_FOUND
// handling; a daemon with a source_url skips the directory/target existence
// check here since SourceProvisioner creates the tree at first start.
func normalizeDaemons(f *Fleet) ([]DaemonConfig, []string) {
	var daemons []DaemonConfig
	var warnings []string

	names := make([]string, 0, len(f.Daemons))
	for name := range f.Daemons {
		names = append(names, name)
	}

	seenMainFile := make(map[string]string, len(names))

	for _, name := range names {
		entry := f.Daemons[name]

		dir := entry.Dir
		if dir == "" {
			dir = name
		}
		projectFolder, err := filepath.Abs(filepath.Join(f.DaemonsPath, dir))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("daemon %q: cannot resolve project folder: %v", name, err))
			continue
		}

		target := entry.Target
		if target == "" {
			target = DefaultTarget
		}
		mainFile := filepath.Join(projectFolder, target)

		if entry.SourceURL == "" {
			if _, err := os.Stat(projectFolder); os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("daemon %q: directory not found: %s", name, projectFolder))
				continue
			}
			if _, err := os.Stat(mainFile); os.IsNotExist(err) {
				warnings = append(warnings, fmt.Sprintf("daemon %q: target not found: %s", name, mainFile))
				continue
			}
		}

		if existing, dup := seenMainFile[mainFile]; dup {
			warnings = append(warnings, fmt.Sprintf("daemon %q: main_file %s already used by %q, skipping", name, mainFile, existing))
			continue
		}
		seenMainFile[mainFile] = name

		args := entry.Arguments
		if args == "" {
			args = f.DefaultArgs
		}

		reqPath, reqWarning := resolveRequirements(name, projectFolder, entry.Requirements, entry.SourceURL != "")
		if reqWarning != "" {
			warnings = append(warnings, reqWarning)
			continue
		}

		autoRestart := f.DefaultAutoRestart
		if entry.AutoRestart != nil {
			autoRestart = *entry.AutoRestart
		}
		createEnv := f.DefaultVenv
		if entry.Virtualenv != nil {
			createEnv = *entry.Virtualenv
		}

		daemons = append(daemons, DaemonConfig{
			Name:              name,
			ProjectFolder:     projectFolder,
			MainFile:          mainFile,
			MainFileArguments: tokenizeArguments(args),
			RequirementsPath:  reqPath,
			CreateEnv:         createEnv,
			KeepRunning:       autoRestart,
			SourceURL:         entry.SourceURL,
			SourceAuth:        entry.SourceAuth,
		})
	}

	return daemons, warnings
}

// resolveRequirements implements the "-"/"default"/path-relative-to-dir
// three-way per spec.md's per-daemon keys table.
func resolveRequirements(name, projectFolder, requirements string, provisioned bool) (*string, string) {
	if requirements == "" || requirements == RequirementsIgnoreSentinel {
		return nil, ""
	}

	var path string
	if requirements == RequirementsDefaultKeyword {
		path = filepath.Join(projectFolder, "requirements.txt")
	} else {
		path = filepath.Join(projectFolder, requirements)
	}

	if !provisioned {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Sprintf("daemon %q: requirements file not found: %s", name, path)
		}
	}
	return &path, ""
}

// tokenizeArguments splits a shell-like argument string into an ordered
// argv tail. Quoting is not supported; this is whitespace tokenization,
// the stable tokenization spec.md §9 asks for in place of shell semantics.
func tokenizeArguments(args string) []string {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
