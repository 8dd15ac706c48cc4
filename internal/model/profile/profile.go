package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// Profile is the portfolio subject as shown on the page and fed to the model.
type Profile struct {
	Name             string          `yaml:"name" json:"name"`
	Title            string          `yaml:"title" json:"title"`
	Tagline          string          `yaml:"tagline" json:"tagline,omitempty"`
	Email            string          `yaml:"email" json:"email"`
	GitHubURL        string          `yaml:"githubUrl" json:"githubUrl"`
	Location         Location        `yaml:"location" json:"location"`
	Objective        string          `yaml:"objective" json:"objective,omitempty"`
	Education        []Education     `yaml:"education" json:"education,omitempty"`
	Skills           []SkillGroup    `yaml:"skills" json:"skills,omitempty"`
	SoftSkills       []string        `yaml:"softSkills" json:"softSkills,omitempty"`
	Experience       []string        `yaml:"experience" json:"experience,omitempty"`
	Projects         []Project       `yaml:"projects" json:"projects,omitempty"`
	Certifications   []Certification `yaml:"certifications" json:"certifications,omitempty"`
	Responsibilities []string        `yaml:"responsibilities" json:"responsibilities,omitempty"`
}

type Location struct {
	Current string `yaml:"current" json:"current"`
	Native  string `yaml:"native" json:"native,omitempty"`
}

type Education struct {
	Degree      string `yaml:"degree" json:"degree"`
	Institution string `yaml:"institution" json:"institution"`
	Period      string `yaml:"period" json:"period,omitempty"`
	Score       string `yaml:"score" json:"score,omitempty"`
}

type SkillGroup struct {
	Group string   `yaml:"group" json:"group"`
	Items []string `yaml:"items" json:"items"`
}

// ProjectStatus is either completed or in-progress.
type ProjectStatus string

const (
	StatusCompleted  ProjectStatus = "completed"
	StatusInProgress ProjectStatus = "in-progress"
)

type Project struct {
	Slug    string        `yaml:"slug" json:"slug"`
	Name    string        `yaml:"name" json:"name"`
	Status  ProjectStatus `yaml:"status" json:"status"`
	Summary string        `yaml:"summary" json:"summary"`
	Tech    []string      `yaml:"tech" json:"tech,omitempty"`
}

type Certification struct {
	Name   string `yaml:"name" json:"name"`
	Issuer string `yaml:"issuer" json:"issuer"`
	Date   string `yaml:"date" json:"date,omitempty"`
}

// FirstName returns the first word of Name.
func (p Profile) FirstName() string {
	if fields := strings.Fields(p.Name); len(fields) > 0 {
		return fields[0]
	}
	return p.Name
}

// Default returns the embedded profile. It panics if the embedded document is
// broken, which only a bad build can cause.
func Default() Profile {
	p, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded profile: %v", err))
	}
	return p
}

// Load reads a profile document from path, or returns Default when path is empty.
func Load(path string) (Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile document.
func Parse(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the fields the chat replies depend on.
func (p Profile) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("profile name is required"))
	}
	if !strings.Contains(p.Email, "@") {
		errs = append(errs, fmt.Errorf("profile email %q is invalid", p.Email))
	}
	if !strings.Contains(p.GitHubURL, "github.com") {
		errs = append(errs, fmt.Errorf("profile githubUrl %q must point at github.com", p.GitHubURL))
	}

	seen := make(map[string]struct{}, len(p.Projects))
	for _, project := range p.Projects {
		if project.Slug == "" {
			errs = append(errs, fmt.Errorf("project %q has no slug", project.Name))
			continue
		}
		if _, dup := seen[project.Slug]; dup {
			errs = append(errs, fmt.Errorf("duplicate project slug %q", project.Slug))
		}
		seen[project.Slug] = struct{}{}
	}
	return errors.Join(errs...)
}
