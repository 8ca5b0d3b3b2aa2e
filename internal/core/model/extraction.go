package model

import (
	"encoding/json"
	"strings"
)

const DefaultEntityType = "unknown"

// ExtractedEntity accepts either a bare name or a {"name", "type"} object,
// since models return both shapes.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (e *ExtractedEntity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		e.Name = strings.TrimSpace(name)
		e.Type = DefaultEntityType
		return nil
	}

	type plain ExtractedEntity
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	e.Name = strings.TrimSpace(p.Name)
	e.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if e.Type == "" {
		e.Type = DefaultEntityType
	}
	return nil
}

// Extraction is the model's structured reading of one document.
type Extraction struct {
	Topics       []string          `json:"topics"`
	Entities     []ExtractedEntity `json:"entities"`
	DocumentType string            `json:"document_type"`
	Summary      string            `json:"summary"`
}

// EntityParams renders entities as the list-of-maps parameter used by the MENTIONS upsert.
func (x Extraction) EntityParams() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(x.Entities))
	for _, e := range x.Entities {
		if e.Name == "" {
			continue
		}
		out = append(out, map[string]interface{}{"name": e.Name, "type": e.Type})
	}
	return out
}
