package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sync target sources
const (
	SourceDrive = "drive"
	SourceS3    = "s3"
)

// SyncTarget is one folder synchronized on a schedule.
type SyncTarget struct {
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	FolderID  string `yaml:"folder_id"`
	TargetID  string `yaml:"target_id"`
	Namespace string `yaml:"namespace,omitempty"`
}

type syncTargetsFile struct {
	Targets []SyncTarget `yaml:"targets"`
}

// LoadSyncTargets reads the scheduled sync targets from a YAML file.
func LoadSyncTargets(path string) ([]SyncTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync targets file: %w", err)
	}
	return ParseSyncTargets(data)
}

// ParseSyncTargets decodes and validates a sync targets document.
func ParseSyncTargets(data []byte) ([]SyncTarget, error) {
	var file syncTargetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sync targets: %w", err)
	}

	for i := range file.Targets {
		t := &file.Targets[i]
		if t.Source == "" {
			t.Source = SourceDrive
		}
		if t.Source != SourceDrive && t.Source != SourceS3 {
			return nil, fmt.Errorf("target %d: unknown source %q", i, t.Source)
		}
		if t.TargetID == "" {
			return nil, fmt.Errorf("target %d: target_id is required", i)
		}
		if t.Source == SourceDrive && t.FolderID == "" {
			return nil, fmt.Errorf("target %d: folder_id is required for drive", i)
		}
		if t.Name == "" {
			t.Name = t.TargetID
		}
	}

	return file.Targets, nil
}
