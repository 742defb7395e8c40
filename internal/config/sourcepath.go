package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SourcePathType discriminates the root a SourcePath is relative to,
// matching original_source/src/cli.rs's SourcePathType enum.
type SourcePathType string

const (
	SourcePathMusimanagerMusic SourcePathType = "MusimanagerMusic"
	SourcePathMusimanagerTemp  SourcePathType = "MusimanagerTemp"
	SourcePathCovauMusic       SourcePathType = "CovauMusic"
	SourcePathAbsolute         SourcePathType = "Absolute"
)

// SourcePath is a path relative to one of the configured music roots,
// or an absolute path. Stored objects reference files this way so the
// database stays portable across machines with differently-located
// music directories (spec §6).
type SourcePath struct {
	Typ  SourcePathType `json:"typ"`
	Path string         `json:"path"`
}

// NewSourcePath strips the root corresponding to typ from an absolute
// path, producing the relative SourcePath that ToPath can later
// resolve back. Grounded on DerivedConfig::source_path in
// original_source/src/cli.rs.
func (c *Config) NewSourcePath(typ SourcePathType, path string) (SourcePath, error) {
	switch typ {
	case SourcePathMusimanagerMusic:
		if c.Musimanager == nil {
			return SourcePath{}, fmt.Errorf("musimanager not set in config")
		}
		rel, ok := strings.CutPrefix(path, c.Musimanager.MusicPath)
		if !ok {
			return SourcePath{}, fmt.Errorf("wrong path: %q is not under musimanager music_path", path)
		}
		return SourcePath{Typ: SourcePathMusimanagerMusic, Path: rel}, nil
	case SourcePathMusimanagerTemp:
		if c.Musimanager == nil {
			return SourcePath{}, fmt.Errorf("musimanager not set in config")
		}
		rel, ok := strings.CutPrefix(path, c.Musimanager.TempMusicPath)
		if !ok {
			return SourcePath{}, fmt.Errorf("wrong path: %q is not under musimanager temp_music_path", path)
		}
		return SourcePath{Typ: SourcePathMusimanagerTemp, Path: rel}, nil
	case SourcePathCovauMusic:
		rel, ok := strings.CutPrefix(path, c.MusicPath)
		if !ok {
			return SourcePath{}, fmt.Errorf("wrong path: %q is not under music_path", path)
		}
		return SourcePath{Typ: SourcePathCovauMusic, Path: rel}, nil
	case SourcePathAbsolute:
		return SourcePath{Typ: SourcePathAbsolute, Path: path}, nil
	default:
		return SourcePath{}, fmt.Errorf("unknown source path type %q", typ)
	}
}

// ToPath resolves p back to an absolute filesystem path, joining its
// relative path against the root its Typ names. Grounded on
// DerivedConfig::to_path in original_source/src/cli.rs.
func (c *Config) ToPath(p SourcePath) (string, error) {
	switch p.Typ {
	case SourcePathMusimanagerMusic:
		if c.Musimanager == nil {
			return "", fmt.Errorf("musimanager music path not in config")
		}
		return filepath.Join(c.Musimanager.MusicPath, p.Path), nil
	case SourcePathMusimanagerTemp:
		if c.Musimanager == nil {
			return "", fmt.Errorf("musimanager temp music path not in config")
		}
		return filepath.Join(c.Musimanager.TempMusicPath, p.Path), nil
	case SourcePathCovauMusic:
		return filepath.Join(c.MusicPath, p.Path), nil
	case SourcePathAbsolute:
		return p.Path, nil
	default:
		return "", fmt.Errorf("unknown source path type %q", p.Typ)
	}
}
