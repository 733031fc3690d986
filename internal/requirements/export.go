package requirements

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// ErrInvalidImport is returned when an imported document does not carry the
// five requirement categories as arrays.
var ErrInvalidImport = errors.New("invalid import document")

// ExportInfo is the metadata header of an exported snapshot.
type ExportInfo struct {
	Timestamp         time.Time `json:"timestamp"`
	Version           string    `json:"version"`
	Tool              string    `json:"tool"`
	TotalRequirements int       `json:"totalRequirements"`
}

// Export is the persisted snapshot layout.
type Export struct {
	ExportInfo         ExportInfo    `json:"exportInfo"`
	Requirements       Document      `json:"requirements"`
	SystemArchitecture *Architecture `json:"systemArchitecture"`
}

// ExportFormatVersion is written into ExportInfo.Version.
const ExportFormatVersion = "1.0"

// NewExport builds an export snapshot of the given state.
func NewExport(doc Document, arch *Architecture, tool string, now time.Time) Export {
	return Export{
		ExportInfo: ExportInfo{
			Timestamp:         now.UTC(),
			Version:           ExportFormatVersion,
			Tool:              tool,
			TotalRequirements: doc.Total(),
		},
		Requirements:       doc.Clone(),
		SystemArchitecture: arch,
	}
}

// ParseImport validates and decodes an exported snapshot. All five category
// fields must be present and be arrays; otherwise ErrInvalidImport is
// returned and nothing is decoded.
func ParseImport(data []byte) (Export, error) {
	if !gjson.ValidBytes(data) {
		return Export{}, fmt.Errorf("%w: not valid JSON", ErrInvalidImport)
	}
	reqs := gjson.GetBytes(data, "requirements")
	if !reqs.IsObject() {
		return Export{}, fmt.Errorf("%w: requirements object is missing", ErrInvalidImport)
	}
	for _, c := range Categories {
		if !reqs.Get(string(c)).IsArray() {
			return Export{}, fmt.Errorf("%w: requirements.%s must be an array", ErrInvalidImport, c)
		}
	}

	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return Export{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := CheckDocument(&exp.Requirements); err != nil {
		return Export{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if exp.SystemArchitecture != nil {
		if err := CheckArchitecture(exp.SystemArchitecture); err != nil {
			return Export{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
	}
	exp.Requirements = normaliseIDs(exp.Requirements)
	return exp, nil
}

// normaliseIDs fills missing ids and resolves duplicates within a category.
func normaliseIDs(d Document) Document {
	return Merge(Document{}, d, MergeReplace).Document
}
