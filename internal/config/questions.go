package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
)

type questionsFile struct {
	Questions []string `yaml:"questions"`
}

// LoadQuestions returns the question battery from a YAML file of the form
// "questions: [...]". An empty path yields the built-in battery.
func LoadQuestions(path string) (domain.QuestionSet, error) {
	if path == "" {
		return domain.DefaultQuestions, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions file: %w", err)
	}

	var parsed questionsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse questions file %s: %w", path, err)
	}

	questions, err := domain.QuestionSet(parsed.Questions).Normalize()
	if err != nil {
		return nil, fmt.Errorf("questions file %s: %w", path, err)
	}
	return questions, nil
}
