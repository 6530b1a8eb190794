// Package crops loads crop care schedules into an immutable crop.Store.
//
// The file format follows the plant catalogue used by the web front end:
//
//	plants:
//	  - name: Tomatoes
//	    care_schedule:
//	      - task_title: Plant seeds
//	        days_after_planting: 0
//
// JSON documents with the same shape are accepted as well. Schedule entries without
// days_after_planting describe ongoing chores and are not part of a dated plan.
package crops

import (
	_ "embed"
	"fmt"
	"os"

	"terratrack_notifier/internal/domain/crop"

	"gopkg.in/yaml.v3"
)

//go:embed default_crops.yaml
var defaultCatalogue []byte

type catalogue struct {
	Plants []plantRecord `yaml:"plants"`
}

type plantRecord struct {
	Name         string         `yaml:"name"`
	CareSchedule []careTaskItem `yaml:"care_schedule"`
}

type careTaskItem struct {
	TaskTitle         string `yaml:"task_title"`
	DaysAfterPlanting *int   `yaml:"days_after_planting"`
}

// LoadFile reads a catalogue from path, or the embedded default when path is empty.
func LoadFile(path string) (*crop.Store, error) {
	if path == "" {
		return Parse(defaultCatalogue)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crop templates %s: %w", path, err)
	}
	store, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("crop templates %s: %w", path, err)
	}
	return store, nil
}

// Parse decodes a YAML or JSON catalogue.
func Parse(raw []byte) (*crop.Store, error) {
	var c catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to decode crop templates: %w", err)
	}

	templates := make([]crop.Template, 0, len(c.Plants))
	for _, plant := range c.Plants {
		t := crop.Template{Name: plant.Name}
		for _, item := range plant.CareSchedule {
			if item.DaysAfterPlanting == nil {
				continue
			}
			t.Steps = append(t.Steps, crop.Step{DayOffset: *item.DaysAfterPlanting, Task: item.TaskTitle})
		}
		templates = append(templates, t)
	}
	return crop.NewStore(templates)
}
