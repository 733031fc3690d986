package requirements

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrSchema is wrapped by every structural violation found in oracle or
// imported data.
var ErrSchema = errors.New("schema violation")

// CheckDocument validates items in every category: a non-empty title and a
// known priority. It normalises priority casing in place.
func CheckDocument(d *Document) error {
	for _, c := range Categories {
		items := d.Items(c)
		for i := range items {
			it := &items[i]
			if strings.TrimSpace(it.Title) == "" {
				return fmt.Errorf("%w: %s[%d] has no title", ErrSchema, c, i)
			}
			it.Priority = Priority(strings.ToLower(strings.TrimSpace(string(it.Priority))))
			if !it.Priority.valid() {
				return fmt.Errorf("%w: %s[%d] has unknown priority %q", ErrSchema, c, i, it.Priority)
			}
		}
	}
	return nil
}

// CheckArchitecture validates the enumerations of an oracle-produced
// architecture and replaces nil lists with empty ones.
func CheckArchitecture(a *Architecture) error {
	if strings.TrimSpace(a.ArchitectureType) == "" {
		return fmt.Errorf("%w: architecture_type is empty", ErrSchema)
	}
	switch a.DeploymentEnvironment {
	case DeployCloud, DeployOnPremise, DeployHybrid:
	default:
		return fmt.Errorf("%w: unknown deployment_environment %q", ErrSchema, a.DeploymentEnvironment)
	}
	for i := range a.Components {
		comp := &a.Components[i]
		if strings.TrimSpace(comp.Name) == "" {
			return fmt.Errorf("%w: components[%d] has no name", ErrSchema, i)
		}
		if !slices.Contains(ComponentTypes, comp.Type) {
			return fmt.Errorf("%w: components[%d] has unknown type %q", ErrSchema, i, comp.Type)
		}
		if comp.Technologies == nil {
			comp.Technologies = []string{}
		}
	}
	if a.Components == nil {
		a.Components = []Component{}
	}
	if a.NetworkRequirements == nil {
		a.NetworkRequirements = []string{}
	}
	if a.SecurityMeasures == nil {
		a.SecurityMeasures = []string{}
	}
	if a.ScalabilityConsiderations == nil {
		a.ScalabilityConsiderations = []string{}
	}
	return nil
}

// CheckValidation validates the status enumeration and the score range.
func CheckValidation(v *ValidationResult) error {
	switch v.OverallStatus {
	case StatusGood, StatusWarning, StatusCritical:
	default:
		return fmt.Errorf("%w: unknown overall_status %q", ErrSchema, v.OverallStatus)
	}
	if v.CompletenessScore < 0 || v.CompletenessScore > 100 {
		return fmt.Errorf("%w: completeness_score %d out of range", ErrSchema, v.CompletenessScore)
	}
	return nil
}
