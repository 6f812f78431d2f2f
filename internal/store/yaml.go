package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

type yamlDocument struct {
	Meetings []Record `yaml:"meetings"`
}

// YAMLFile serves meetings from a YAML document of the form
//
//	meetings:
//	  - id: "1"
//	    team: Core
//	    title: Dev chat
//	    start_date: "2021-01-06"
//	    time: "10:00:00"
//	    recurring: weekly
//	    cancelled: ["2021-01-13"]
//
// The file is re-read on every call so edits show up without a restart.
type YAMLFile struct {
	path string
}

func NewYAMLFile(path string) (*YAMLFile, error) {
	if path == "" {
		return nil, errors.New("meetings file path is empty")
	}
	return &YAMLFile{path: path}, nil
}

func (y *YAMLFile) Meetings(_ context.Context, team string) ([]model.Meeting, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	records, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, y.path, err)
	}

	meetings, errs := convert(records, team)
	for _, e := range errs {
		appLog.Warn("store: skipping meeting", "path", y.path, "err", e.Error())
	}
	return meetings, nil
}

// ParseYAML decodes a meetings document.
func ParseYAML(data []byte) ([]Record, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Meetings, nil
}
