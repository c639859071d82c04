package plants

import (
	"fmt"
	"strings"
)

// Stage is a plant's life stage.
type Stage uint8

const (
	StageSeedling Stage = iota
	StageVegetative
	StageFlowering
	StageHarvestReady
	StageDead
)

var stageNames = [...]string{"seedling", "vegetative", "flowering", "harvestReady", "dead"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", uint8(s))
}

// ParseStage maps a stage name (case-insensitive) to its Stage.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// MarshalText writes the stage name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Alive reports whether the stage still grows or waits for harvest.
func (s Stage) Alive() bool {
	return s != StageDead
}
