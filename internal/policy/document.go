// Package policy loads policy documents and sanctions lists from disk and
// compiles them into the immutable domain.RuleSet the pipeline evaluates.
package policy

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"riskengine/internal/domain"
)

// Load reads and validates a policy document from path.
func Load(path string) (*domain.Policy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("policy: open %s: %w", path, err)
	}
	defer file.Close()

	var doc domain.Policy
	if err := yaml.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("policy: decode %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("policy: %s: %w", path, err)
	}
	return &doc, nil
}

// LoadSanctions reads a flat, one-address-per-line sanctions list. Blank
// lines and lines starting with "#" are ignored so the file can carry
// provenance comments (list name, effective date) without tripping parsing.
func LoadSanctions(path string) (map[string]struct{}, error) {
	if path == "" {
		return map[string]struct{}{}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("policy: open sanctions %s: %w", path, err)
	}
	defer file.Close()

	set := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("policy: scan sanctions %s: %w", path, err)
	}
	return set, nil
}
