package schema

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// CSDL elements of the $metadata document. Element names match by local
// name, so the edm namespace prefix does not matter.
type csdlDocument struct {
	EntityTypes []csdlEntityType `xml:"DataServices>Schema>EntityType"`
}

type csdlEntityType struct {
	Name       string         `xml:"Name,attr"`
	KeyRefs    []csdlProperty `xml:"Key>PropertyRef"`
	Properties []csdlProperty `xml:"Property"`
}

type csdlProperty struct {
	Name        string           `xml:"Name,attr"`
	Type        string           `xml:"Type,attr"`
	Annotations []csdlAnnotation `xml:"Annotation"`
}

type csdlAnnotation struct {
	Term   string `xml:"Term,attr"`
	Bool   string `xml:"Bool,attr"`
	String string `xml:"String,attr"`
}

// ParseAnnotations extracts the recognized field annotations from a
// $metadata XML document: terms ending in Calculation, Summary, or Global
// (true only when the Bool attribute is literally "true") and FMComment
// (String attribute). EntityType names have trailing underscores stripped
// to match the bare names DDL uses. Only fields with at least one
// annotation appear in the result.
func ParseAnnotations(xmlText string) (map[string]map[string]Annotations, error) {
	if strings.TrimSpace(xmlText) == "" {
		return map[string]map[string]Annotations{}, nil
	}

	var doc csdlDocument
	if err := xml.Unmarshal([]byte(xmlText), &doc); err != nil {
		return nil, fmt.Errorf("parsing metadata XML: %w", err)
	}

	result := map[string]map[string]Annotations{}

	for _, entity := range doc.EntityTypes {
		table := strings.TrimRight(entity.Name, "_")
		if table == "" {
			continue
		}

		fields := map[string]Annotations{}

		for _, prop := range entity.Properties {
			if prop.Name == "" || len(prop.Annotations) == 0 {
				continue
			}

			var ann Annotations

			for _, a := range prop.Annotations {
				term := strings.ToLower(a.Term)
				isTrue := strings.EqualFold(a.Bool, "true")

				switch {
				case strings.HasSuffix(term, "calculation"):
					ann.Calculation = ann.Calculation || isTrue
				case strings.HasSuffix(term, "summary"):
					ann.Summary = ann.Summary || isTrue
				case strings.HasSuffix(term, "global"):
					ann.Global = ann.Global || isTrue
				case strings.HasSuffix(term, "fmcomment"):
					if a.String != "" {
						ann.Comment = a.String
					}
				}
			}

			if ann != (Annotations{}) {
				fields[prop.Name] = ann
			}
		}

		if len(fields) > 0 {
			result[table] = fields
		}
	}

	return result, nil
}

// edmTypeMap simplifies Edm property types for the metadata-derived
// fallback listing.
var edmTypeMap = map[string]SemanticType{
	"Edm.String":         TypeText,
	"Edm.Int32":          TypeNumber,
	"Edm.Int64":          TypeNumber,
	"Edm.Decimal":        TypeDecimal,
	"Edm.Double":         TypeDecimal,
	"Edm.Boolean":        TypeBoolean,
	"Edm.DateTimeOffset": TypeDatetime,
	"Edm.Date":           TypeDate,
	"Edm.Binary":         TypeBinary,
	"Edm.Stream":         TypeBinary,
}

// MetadataTables derives table definitions straight from the $metadata
// document. Used as the schema source when the DDL script is unavailable:
// coarser than DDL (no varchar widths, no FK constraints) but always
// served. Key PropertyRefs set the PK flag; tiers come from the same rules
// DDL parsing uses.
func MetadataTables(xmlText string) (map[string]Table, error) {
	var doc csdlDocument
	if err := xml.Unmarshal([]byte(xmlText), &doc); err != nil {
		return nil, fmt.Errorf("parsing metadata XML: %w", err)
	}

	tables := map[string]Table{}

	for _, entity := range doc.EntityTypes {
		table := strings.TrimRight(entity.Name, "_")
		if table == "" {
			continue
		}

		keys := map[string]bool{}
		for _, ref := range entity.KeyRefs {
			keys[ref.Name] = true
		}

		fields := Table{}

		for _, prop := range entity.Properties {
			if prop.Name == "" {
				continue
			}

			semantic, ok := edmTypeMap[prop.Type]
			if !ok {
				semantic = TypeUnknown
			}

			var ann Annotations

			hasAnn := false

			for _, a := range prop.Annotations {
				term := strings.ToLower(a.Term)
				isTrue := strings.EqualFold(a.Bool, "true")

				switch {
				case strings.HasSuffix(term, "calculation"):
					ann.Calculation, hasAnn = isTrue, true
				case strings.HasSuffix(term, "summary"):
					ann.Summary, hasAnn = isTrue, true
				case strings.HasSuffix(term, "global"):
					ann.Global, hasAnn = isTrue, true
				case strings.HasSuffix(term, "fmcomment"):
					ann.Comment, hasAnn = a.String, true
				}
			}

			fields[prop.Name] = Field{
				Type:        semantic,
				Tier:        assignTier(prop.Name, ann, hasAnn),
				PK:          keys[prop.Name] || strings.HasPrefix(prop.Name, "_kp_"),
				FK:          strings.HasPrefix(prop.Name, "_kf_"),
				Description: ann.Comment,
			}
		}

		tables[table] = fields
	}

	return tables, nil
}
