package switchconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/klickklack/internal/infrastructure/config"
)

var validate = validator.New()

// SwitchConfig is a fully validated pulse definition for one relay topic.
type SwitchConfig struct {
	// Topic is the relay command topic, also the mapping key.
	Topic string

	// OnCommand is published to Topic when the pulse starts.
	OnCommand string

	// OffCommand is published to Topic when the pulse ends.
	OffCommand string

	// SwitchTimeMs is the pulse length in milliseconds. Always > 0.
	SwitchTimeMs int
}

// Entry is one mapping value as received on the wire:
//
//	{ "on": "on", "off": "off", "switchTimeMs": 1000 }
//
// Fields are pointers so a missing field can be told apart from a zero value.
type Entry struct {
	On           *string `json:"on" yaml:"on" validate:"required"`
	Off          *string `json:"off" yaml:"off" validate:"required"`
	SwitchTimeMs *int    `json:"switchTimeMs" yaml:"switchTimeMs" validate:"required,gt=0"`
}

// NewEntry builds a complete Entry.
func NewEntry(on, off string, switchTimeMs int) Entry {
	return Entry{On: &on, Off: &off, SwitchTimeMs: &switchTimeMs}
}

// Resolve validates the entry and returns the SwitchConfig for topic.
//
// Returns:
//   - SwitchConfig: The validated definition
//   - error: ErrInvalidEntry wrapping the failed rules
func (e Entry) Resolve(topic string) (SwitchConfig, error) {
	if strings.TrimSpace(topic) == "" {
		return SwitchConfig{}, fmt.Errorf("%w: topic is empty", ErrInvalidEntry)
	}

	if err := validate.Struct(e); err != nil {
		return SwitchConfig{}, fmt.Errorf("%w: %s: %s", ErrInvalidEntry, topic, describeValidation(err))
	}

	return SwitchConfig{
		Topic:        topic,
		OnCommand:    *e.On,
		OffCommand:   *e.Off,
		SwitchTimeMs: *e.SwitchTimeMs,
	}, nil
}

// describeValidation turns validator errors into "field rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fieldName(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}

// fieldName maps Go field names to their wire names.
func fieldName(field string) string {
	switch field {
	case "On":
		return "on"
	case "Off":
		return "off"
	case "SwitchTimeMs":
		return "switchTimeMs"
	default:
		return field
	}
}

// Mapping maps relay topics to their pulse definitions. A Mapping is always
// replaced as a whole, never merged.
type Mapping map[string]Entry

// Clone returns a copy that shares no entry pointers with m.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for topic, e := range m {
		var c Entry
		if e.On != nil {
			v := *e.On
			c.On = &v
		}
		if e.Off != nil {
			v := *e.Off
			c.Off = &v
		}
		if e.SwitchTimeMs != nil {
			v := *e.SwitchTimeMs
			c.SwitchTimeMs = &v
		}
		out[topic] = c
	}
	return out
}

// Topics returns the mapping keys, sorted.
func (m Mapping) Topics() []string {
	topics := make([]string, 0, len(m))
	for topic := range m {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve validates every entry and returns the definitions that resolve,
// sorted by topic. Invalid entries are left out and reported together as one
// ErrInvalidConfig error, so configs and err may both be non-empty.
func (m Mapping) Resolve() ([]SwitchConfig, error) {
	configs := make([]SwitchConfig, 0, len(m))
	var errs []error
	for _, topic := range m.Topics() {
		sc, err := m[topic].Resolve(topic)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		configs = append(configs, sc)
	}
	if len(errs) > 0 {
		return configs, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return configs, nil
}

// Equal reports whether both mappings hold the same entries, field by field.
// Entries are compared as received, so invalid entries compare too.
func (m Mapping) Equal(other Mapping) bool {
	if len(m) != len(other) {
		return false
	}
	for topic, e := range m {
		o, ok := other[topic]
		if !ok || !e.equal(o) {
			return false
		}
	}
	return true
}

func (e Entry) equal(o Entry) bool {
	return equalPtr(e.On, o.On) && equalPtr(e.Off, o.Off) && equalPtr(e.SwitchTimeMs, o.SwitchTimeMs)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FromConfigs builds a Mapping from validated definitions.
func FromConfigs(configs []SwitchConfig) Mapping {
	m := make(Mapping, len(configs))
	for _, sc := range configs {
		m[sc.Topic] = NewEntry(sc.OnCommand, sc.OffCommand, sc.SwitchTimeMs)
	}
	return m
}

// FromDefaults builds the built-in Mapping from the application config.
func FromDefaults(switches map[string]config.SwitchDefault) Mapping {
	m := make(Mapping, len(switches))
	for topic, sw := range switches {
		m[topic] = NewEntry(sw.On, sw.Off, sw.SwitchTimeMS)
	}
	return m
}

// Format selects the encoding for ParseMapping.
type Format int

const (
	// FormatJSON is used for remote updates and *.json files.
	FormatJSON Format = iota
	// FormatYAML is used for *.yaml and *.yml files.
	FormatYAML
)

// FormatForPath picks the format from a file extension. Unknown extensions
// are treated as JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseMapping decodes a complete mapping. Only the document shape is
// checked here: entries with missing or invalid fields are kept as received
// and fail on their own when a pulse for that topic is looked up.
//
// Parameters:
//   - data: Encoded object of topic -> {on, off, switchTimeMs}
//   - format: FormatJSON or FormatYAML
//
// Returns:
//   - Mapping: The decoded mapping
//   - error: ErrInvalidConfig if the document is empty, undecodable, not an
//     object, or an entry carries an unknown field
func ParseMapping(data []byte, format Format) (Mapping, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidConfig)
	}

	var m Mapping
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data", ErrInvalidConfig)
		}
	}

	if m == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidConfig)
	}
	return m, nil
}
