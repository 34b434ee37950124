package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TeamDefinition describes one launchable team, as declared under
// teams.definitions in the templates file.
type TeamDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ProjectTemplate describes one reusable gm_projects entry: a named bundle
// of teams to launch together against a repo.
type ProjectTemplate struct {
	Description string   `yaml:"description"`
	Teams       []string `yaml:"teams"`
	BuildCmd    string   `yaml:"build_cmd"`
	TestCmd     string   `yaml:"test_cmd"`
}

// Templates is the parsed shape of the declarative teams/gm_projects YAML
// configuration file.
type Templates struct {
	Teams struct {
		Enabled     []string                  `yaml:"enabled"`
		Definitions map[string]TeamDefinition `yaml:"definitions"`
	} `yaml:"teams"`
	Projects map[string]ProjectTemplate `yaml:"gm_projects"`
}

// LoadTemplates parses a teams/gm_projects YAML file.
func LoadTemplates(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates file: %w", err)
	}
	return &t, nil
}

// AvailableTeams returns the team definitions listed under teams.enabled, in
// that order. A name in teams.enabled with no matching definition is skipped.
func (t *Templates) AvailableTeams() []TeamDefinition {
	var teams []TeamDefinition
	for _, name := range t.Teams.Enabled {
		if def, ok := t.Teams.Definitions[name]; ok {
			teams = append(teams, def)
		}
	}
	return teams
}

// Project looks up a named gm_projects template, resolving its team names
// against teams.definitions. Returns an error if the template or any of its
// named teams is undefined.
func (t *Templates) Project(name string) (ProjectTemplate, []TeamDefinition, error) {
	tpl, ok := t.Projects[name]
	if !ok {
		return ProjectTemplate{}, nil, fmt.Errorf("gm project template %q not found", name)
	}
	tpl.BuildCmd = expandEnv(tpl.BuildCmd)
	tpl.TestCmd = expandEnv(tpl.TestCmd)

	var teams []TeamDefinition
	for _, teamName := range tpl.Teams {
		def, ok := t.Teams.Definitions[teamName]
		if !ok {
			return ProjectTemplate{}, nil, fmt.Errorf("team %q referenced by project %q is not defined", teamName, name)
		}
		teams = append(teams, def)
	}
	return tpl, teams, nil
}
