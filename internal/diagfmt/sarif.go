package diagfmt

import (
	"encoding/json"
	"io"
	"sort"

	"lintfix/internal/diag"
	"lintfix/internal/source"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version,omitempty"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
	Fixes     []sarifFix      `json:"fixes,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
	ByteOffset  int `json:"byteOffset"`
	ByteLength  int `json:"byteLength"`
}

type sarifFix struct {
	ArtifactChanges []sarifArtifactChange `json:"artifactChanges"`
}

type sarifArtifactChange struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Replacements     []sarifReplacement    `json:"replacements"`
}

type sarifReplacement struct {
	DeletedRegion   sarifRegion  `json:"deletedRegion"`
	InsertedContent sarifMessage `json:"insertedContent"`
}

func sarifLevel(sev diag.Severity) string {
	switch sev {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}

func sarifRegionFor(doc *source.Document, from, to int) sarifRegion {
	loc := makeLocation(doc, from, to)
	return sarifRegion{
		StartLine:   loc.StartLine,
		StartColumn: loc.StartCol,
		EndLine:     loc.EndLine,
		EndColumn:   loc.EndCol,
		ByteOffset:  from,
		ByteLength:  to - from,
	}
}

// Sarif форматирует диагностики в SARIF формат (v2.1.0).
// Fixes are emitted as byte-region replacements.
func Sarif(w io.Writer, reports []FileReport, meta SarifRunMeta) error {
	results := make([]sarifResult, 0)
	failed := false
	for _, rep := range reports {
		if rep.Doc == nil || rep.Bag == nil {
			continue
		}
		artifact := sarifArtifactLocation{URI: formatPath(rep.Doc.Path, PathModeRelative, "")}
		for _, d := range rep.Bag.Items() {
			if d.Severity == diag.SevError {
				failed = true
			}
			from, to := rep.Doc.OffsetAt(d.Range.Start), rep.Doc.OffsetAt(d.Range.End)
			res := sarifResult{
				RuleID:  d.Code,
				Level:   sarifLevel(d.Severity),
				Message: sarifMessage{Text: d.Message},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysicalLocation{
						ArtifactLocation: artifact,
						Region:           sarifRegionFor(rep.Doc, from, to),
					},
				}},
			}
			if d.Fix != nil {
				res.Fixes = []sarifFix{{
					ArtifactChanges: []sarifArtifactChange{{
						ArtifactLocation: artifact,
						Replacements: []sarifReplacement{{
							DeletedRegion:   sarifRegion{ByteOffset: d.Fix.Range.From, ByteLength: d.Fix.Range.Len()},
							InsertedContent: sarifMessage{Text: d.Fix.Text},
						}},
					}},
				}}
			}
			results = append(results, res)
		}
	}

	ids := make([]string, 0, len(meta.Rules))
	for id := range meta.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		rules = append(rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: meta.Rules[id]}})
	}

	name := meta.ToolName
	if name == "" {
		name = "lintfix"
	}
	log := sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{Name: name, Version: meta.ToolVersion, Rules: rules}},
			Invocations: []sarifInvocation{{
				Arguments:           meta.InvocationArgs,
				ExecutionSuccessful: !failed,
			}},
			Results: results,
		}},
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}
