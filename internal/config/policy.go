package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

//go:embed dedup_policy.yaml
var defaultDuplicatePolicy []byte

// DefaultDuplicatePolicy returns the built-in duplicate comparison policy.
func DefaultDuplicatePolicy() domain.DuplicatePolicy {
	policy, err := ParseDuplicatePolicy(defaultDuplicatePolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded duplicate policy: %v", err))
	}
	return policy
}

// LoadDuplicatePolicy reads a policy file. An empty path selects the
// built-in policy.
func LoadDuplicatePolicy(path string) (domain.DuplicatePolicy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultDuplicatePolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.DuplicatePolicy{}, fmt.Errorf("read duplicate policy: %w", err)
	}
	return ParseDuplicatePolicy(raw)
}

func ParseDuplicatePolicy(raw []byte) (domain.DuplicatePolicy, error) {
	var policy domain.DuplicatePolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return domain.DuplicatePolicy{}, fmt.Errorf("parse duplicate policy: %w", err)
	}
	if strings.TrimSpace(policy.Preamble) == "" {
		return domain.DuplicatePolicy{}, errors.New("duplicate policy: preamble is required")
	}
	if len(policy.Criteria) == 0 {
		return domain.DuplicatePolicy{}, errors.New("duplicate policy: at least one criterion is required")
	}
	return policy, nil
}
