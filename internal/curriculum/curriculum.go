// Package curriculum provides the ordered topic lists courses are
// taught from. A curriculum is immutable once handed to a session.
package curriculum

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Curriculum is an ordered list of topic names for one course.
type Curriculum struct {
	Course string
	Topics []string
}

// cellBiologyTopics progresses naturally from outer structures inward.
var cellBiologyTopics = []string{
	"Introduction to Cells",
	"Cell Membrane",
	"Cytoplasm",
	"Nucleus",
	"Mitochondria",
	"Endoplasmic Reticulum",
	"Golgi Apparatus",
	"Ribosomes",
	"Lysosomes",
	"Vacuoles",
	"Chloroplasts (Plant Cells)",
	"Cell Wall (Plant Cells)",
	"Cytoskeleton",
	"Cell Types: Prokaryotic vs Eukaryotic",
	"Plant vs Animal Cells",
}

// builtin maps course names to their built-in curricula.
var builtin = map[string][]string{
	"Cell Biology": cellBiologyTopics,
}

// Builtin returns the built-in curriculum for a course. Unknown courses
// fall back to Cell Biology, the default course.
func Builtin(course string) Curriculum {
	topics, ok := builtin[course]
	if !ok {
		return Curriculum{Course: "Cell Biology", Topics: clone(cellBiologyTopics)}
	}
	return Curriculum{Course: course, Topics: clone(topics)}
}

// courseFile is the YAML shape of an external course definition.
type courseFile struct {
	Course string   `yaml:"course"`
	Topics []string `yaml:"topics"`
}

// LoadFile reads a course definition from a YAML file.
func LoadFile(path string) (Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Curriculum{}, fmt.Errorf("read course file: %w", err)
	}
	var cf courseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return Curriculum{}, fmt.Errorf("parse course file: %w", err)
	}
	if cf.Course == "" {
		return Curriculum{}, fmt.Errorf("course file %s: missing course name", path)
	}
	if len(cf.Topics) == 0 {
		return Curriculum{}, fmt.Errorf("course file %s: no topics", path)
	}
	return Curriculum{Course: cf.Course, Topics: cf.Topics}, nil
}

// Provider hands out the current curriculum. Existing sessions keep the
// copy they were initialized with; a reload only affects new sessions.
type Provider struct {
	mu      sync.RWMutex
	current Curriculum
}

// NewProvider creates a provider serving the given curriculum.
func NewProvider(c Curriculum) *Provider {
	return &Provider{current: c}
}

// Current returns a copy of the active curriculum.
func (p *Provider) Current() Curriculum {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Curriculum{Course: p.current.Course, Topics: clone(p.current.Topics)}
}

// Replace swaps the active curriculum.
func (p *Provider) Replace(c Curriculum) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = c
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
