package blueprints

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeviceKind discriminates device variants.
type DeviceKind uint8

const (
	KindLamp DeviceKind = iota + 1
	KindClimateUnit
	KindDehumidifier
	KindCO2Injector
	KindHumidityControlUnit
)

var kindNames = map[DeviceKind]string{
	KindLamp:                "Lamp",
	KindClimateUnit:         "ClimateUnit",
	KindDehumidifier:        "Dehumidifier",
	KindCO2Injector:         "CO2Injector",
	KindHumidityControlUnit: "HumidityControlUnit",
}

// Kinds returns all known device kinds in declaration order.
func Kinds() []DeviceKind {
	return []DeviceKind{KindLamp, KindClimateUnit, KindDehumidifier, KindCO2Injector, KindHumidityControlUnit}
}

func (k DeviceKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DeviceKind(%d)", uint8(k))
}

// ParseDeviceKind maps a kind name (case-insensitive) to its DeviceKind.
func ParseDeviceKind(s string) (DeviceKind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// UnmarshalYAML rejects unknown kinds while the catalog is loaded.
func (k *DeviceKind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDeviceKind(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*k = parsed
	return nil
}

// MarshalYAML writes the kind name.
func (k DeviceKind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// MarshalText writes the kind name for JSON keys and values.
func (k DeviceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
