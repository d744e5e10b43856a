package forecast

import (
	"fmt"
	"os"

	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"gopkg.in/yaml.v3"
)

type scenarioFile struct {
	Scenarios []model.Scenario `yaml:"scenarios"`
}

// LoadScenarios reads what-if scenarios from a YAML file:
//
//	scenarios:
//	  - name: bonus
//	    one_time:
//	      - month: 2026-01-01
//	        amount: 5000
//	        description: Julbonus
//	  - name: cheaper-food
//	    expense_deltas:
//	      Mat: -500
func LoadScenarios(path string) ([]model.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios %s: %w", path, err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes the LoadScenarios format from memory.
func ParseScenarios(data []byte) ([]model.Scenario, error) {
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	for i := range file.Scenarios {
		if err := validateScenario(&file.Scenarios[i]); err != nil {
			return nil, err
		}
	}
	return file.Scenarios, nil
}
