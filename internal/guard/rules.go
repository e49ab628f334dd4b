package guard

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule categories.
const (
	CategorySQL       = "sql"
	CategoryInjection = "injection"
	CategoryCheating  = "cheating"
)

// Rule is one blocklist entry. Matching is case-insensitive substring
// search of Pattern against the prompt.
type Rule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
}

// ruleFile is the on-disk shape of an external blocklist.
type ruleFile struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// DefaultRules returns the built-in blocklist. The trailing spaces on
// the SQL keywords are intentional: "select " matches the statement
// form without rejecting prose like "selected".
func DefaultRules() []Rule {
	return []Rule{
		// SQL DDL/DML keywords.
		{Pattern: "select ", Category: CategorySQL},
		{Pattern: "insert ", Category: CategorySQL},
		{Pattern: "update ", Category: CategorySQL},
		{Pattern: "delete ", Category: CategorySQL},
		{Pattern: "drop ", Category: CategorySQL},
		{Pattern: "create table", Category: CategorySQL},
		{Pattern: "alter table", Category: CategorySQL},

		// System prompt bypass attempts.
		{Pattern: "игнорируй инструкции", Category: CategoryInjection},
		{Pattern: "забудь про систему", Category: CategoryInjection},
		{Pattern: "ты теперь", Category: CategoryInjection},
		{Pattern: "притворись что", Category: CategoryInjection},
		{Pattern: "roleplay", Category: CategoryInjection},
		{Pattern: "act as", Category: CategoryInjection},
		{Pattern: "pretend you are", Category: CategoryInjection},
		{Pattern: "ignore previous", Category: CategoryInjection},
		{Pattern: "new instructions", Category: CategoryInjection},

		// Direct solution requests.
		{Pattern: "дай ответ", Category: CategoryCheating},
		{Pattern: "покажи ответ", Category: CategoryCheating},
		{Pattern: "реши задание", Category: CategoryCheating},
		{Pattern: "решение задачи", Category: CategoryCheating},
		{Pattern: "готовый ответ", Category: CategoryCheating},
		{Pattern: "выполни задание", Category: CategoryCheating},
		{Pattern: "сделай домашку", Category: CategoryCheating},
		{Pattern: "сделай за меня", Category: CategoryCheating},
		{Pattern: "весь текст документа", Category: CategoryCheating},
		{Pattern: "скопируй документ", Category: CategoryCheating},
		{Pattern: "покажи весь документ полностью", Category: CategoryCheating},
		{Pattern: "что в документе написано", Category: CategoryCheating},
		{Pattern: "перепиши документ", Category: CategoryCheating},
		{Pattern: "executive summary готовый", Category: CategoryCheating},
	}
}

// LoadRules reads a YAML blocklist file and returns its rules. The file
// replaces the built-in list entirely so rule changes never require a
// redeploy.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rules file %s: rule %d has an empty pattern", path, i)
		}
	}
	return f.Rules, nil
}
