package sync

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
)

//go:embed settings/*.yaml
var embeddedSettingsFS embed.FS

// DefaultEmbeddedSettings holds the defaults shipped with the binary.
var DefaultEmbeddedSettings = EmbeddedSettings{Root: "settings", Files: embeddedSettingsFS}

type SettingsFile struct {
	Name   string
	Reader io.Reader
	Length int
}

type EmbeddedSettings struct {
	Root  string
	Files EmbeddedFS
}

type EmbeddedFS interface {
	Open(name string) (fs.File, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

func (es EmbeddedSettings) MustFindRootSettingsFile(filename string) (SettingsFile, error) {
	var result SettingsFile
	name := path.Join(es.Root, filename)
	b, err := es.Files.ReadFile(name)
	if err == nil {
		result = settingsFileFromBytes(name, b)
	}
	return result, err
}

func (es EmbeddedSettings) MustFindDefaultsSettingsFile() (SettingsFile, error) {
	return es.MustFindRootSettingsFile("defaults.yaml")
}

// ReadSettingsFile reads a YAML settings file from disk.
func ReadSettingsFile(filename string) (SettingsFile, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return SettingsFile{}, fmt.Errorf("failed to read settings file %w", err)
	}
	return settingsFileFromBytes(filename, b), nil
}

func settingsFileFromBytes(name string, b []byte) SettingsFile {
	return SettingsFile{Name: name, Reader: bytes.NewReader(b), Length: len(b)}
}

// LoadConfigurationFromYAML layers the embedded defaults under the given files and expands
// ${VAR} references from the environment (including the SHEETJIRA_CONNECTION composite variable).
func LoadConfigurationFromYAML(embedded EmbeddedSettings, files ...SettingsFile) (Configuration, error) {
	defaults, err := embedded.MustFindDefaultsSettingsFile()
	if err != nil {
		return Configuration{}, fmt.Errorf("failed to read defaults settings file %w", err)
	}
	sources := append([]SettingsFile{defaults}, files...)
	return YAMLSettingsUnmarshaler{}.Unmarshal(JSONCompositeEnvVar{Parent: ConnectionEnvVar}, sources...)
}
