package config

import (
	"fmt"
	"os"

	"sims/internal/service"

	"gopkg.in/yaml.v3"
)

// LoadPasswordPolicy reads a YAML rule set. An empty path yields the built-in defaults.
func LoadPasswordPolicy(path string) (service.PasswordPolicy, error) {
	if path == "" {
		return service.DefaultPasswordPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return service.PasswordPolicy{}, fmt.Errorf("read password policy: %w", err)
	}
	policy := service.DefaultPasswordPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return service.PasswordPolicy{}, fmt.Errorf("parse password policy: %w", err)
	}
	if policy.MinLength < 0 || policy.MinStrengthScore < 0 || policy.MinStrengthScore > 4 {
		return service.PasswordPolicy{}, fmt.Errorf("password policy out of range")
	}
	return policy, nil
}
