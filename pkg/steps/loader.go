package steps

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// LoadFS walks the provided filesystem and parses JSON/YAML definition files
// into a registry. When fsys is nil or holds no definitions the registry is
// empty.
func LoadFS(fsys fs.FS) (*Registry, error) {
	registry := NewRegistry()
	if fsys == nil {
		return registry, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("steps: read %s: %w", path, err)
		}

		def, err := Parse(data, path)
		if err != nil {
			return err
		}
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("steps: %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return registry, nil
}

type definitionFile struct {
	DocumentType string                                       `json:"documentType" yaml:"documentType"`
	Title        string                                       `json:"title" yaml:"title"`
	SaveGateStep *int                                         `json:"saveGateStep,omitempty" yaml:"saveGateStep,omitempty"`
	Fields       []model.Field                                `json:"fields" yaml:"fields"`
	Steps        []stepFile                                   `json:"steps" yaml:"steps"`
	Branches     map[model.FieldName]map[string]BranchContent `json:"branches" yaml:"branches"`
}

type stepFile struct {
	ID     string            `json:"id" yaml:"id"`
	Title  string            `json:"title" yaml:"title"`
	Fields []model.FieldName `json:"fields" yaml:"fields"`
	Branch *branchFile       `json:"branch,omitempty" yaml:"branch,omitempty"`
}

type branchFile struct {
	Discriminator model.FieldName `json:"discriminator" yaml:"discriminator"`
	Sentinel      string          `json:"sentinel" yaml:"sentinel"`
	Continuation  *int            `json:"continuation,omitempty" yaml:"continuation,omitempty"`
}

// Parse decodes a single definition document (JSON first, then YAML) and
// normalises it. Ordinals follow list order; an omitted branch continuation
// defaults to ordinal+2. The result is not validated.
func Parse(data []byte, source string) (*Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("steps: file %s is empty", source)
	}

	var doc definitionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		doc = definitionFile{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("steps: parse %s: invalid JSON or YAML", source)
		}
	}

	return normaliseDefinition(doc, source)
}

func normaliseDefinition(raw definitionFile, source string) (*Definition, error) {
	def := &Definition{
		DocumentType: strings.TrimSpace(raw.DocumentType),
		Title:        strings.TrimSpace(raw.Title),
		SaveGateStep: DefaultSaveGateStep,
		Fields:       make(map[model.FieldName]model.Field, len(raw.Fields)),
		Branches:     make(map[model.FieldName]map[string]BranchContent, len(raw.Branches)),
	}
	if raw.SaveGateStep != nil {
		def.SaveGateStep = *raw.SaveGateStep
	}
	if def.DocumentType == "" {
		return nil, fmt.Errorf("steps: file %s: %w", source, errDocumentTypeMissing)
	}

	for idx, field := range raw.Fields {
		name := model.FieldName(strings.TrimSpace(string(field.Name)))
		if name == "" {
			return nil, fmt.Errorf("steps: file %s field %d has an empty name", source, idx)
		}
		if _, dup := def.Fields[name]; dup {
			return nil, fmt.Errorf("steps: file %s defines duplicate field %q", source, name)
		}
		field.Name = name
		if field.Type == "" {
			field.Type = model.FieldTypeString
		}
		def.Fields[name] = field
	}

	for idx, raw := range raw.Steps {
		step := Step{
			Ordinal: idx,
			ID:      strings.TrimSpace(raw.ID),
			Title:   strings.TrimSpace(raw.Title),
			Fields:  append([]model.FieldName(nil), raw.Fields...),
		}
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", idx+1)
		}
		if raw.Branch != nil {
			br := Branch{
				Discriminator: raw.Branch.Discriminator,
				Sentinel:      raw.Branch.Sentinel,
				Continuation:  idx + 2,
			}
			if raw.Branch.Continuation != nil {
				br.Continuation = *raw.Branch.Continuation
			}
			step.Branch = &br
		}
		def.Steps = append(def.Steps, step)
	}

	for discriminator, byValue := range raw.Branches {
		cloned := make(map[string]BranchContent, len(byValue))
		for value, content := range byValue {
			if content.Kind == "" {
				content.Kind = ContentQuestionSet
			}
			content.Fields = append([]model.FieldName(nil), content.Fields...)
			cloned[value] = content
		}
		def.Branches[discriminator] = cloned
	}

	return def, nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
