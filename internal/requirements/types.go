package requirements

import (
	"slices"
	"time"
)

// Category names one of the five fixed requirement partitions.
type Category string

const (
	Functional       Category = "functional"
	NonFunctional    Category = "nonFunctional"
	Constraints      Category = "constraints"
	Wishes           Category = "wishes"
	DesignGuidelines Category = "designGuidelines"
)

// Categories lists every category in display order.
var Categories = []Category{Functional, NonFunctional, Constraints, Wishes, DesignGuidelines}

// ParseCategory accepts the JSON key as well as the kebab-case and singular
// forms used in URLs ("non-functional", "design-guideline").
func ParseCategory(s string) (Category, bool) {
	switch s {
	case "functional":
		return Functional, true
	case "nonFunctional", "non-functional", "non_functional":
		return NonFunctional, true
	case "constraints", "constraint":
		return Constraints, true
	case "wishes", "wish":
		return Wishes, true
	case "designGuidelines", "design-guidelines", "design_guidelines", "design-guideline":
		return DesignGuidelines, true
	}
	return "", false
}

// Priority of a requirement item. Empty means unspecified.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) valid() bool {
	switch p {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Item is a single extracted requirement.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority,omitempty"`
	Category    string   `json:"category,omitempty"`
	Type        string   `json:"type,omitempty"`
}

// Document holds the five ordered requirement categories. It is both the
// session's requirement store and the shape exchanged with the oracle.
type Document struct {
	Functional       []Item `json:"functional"`
	NonFunctional    []Item `json:"nonFunctional"`
	Constraints      []Item `json:"constraints"`
	Wishes           []Item `json:"wishes"`
	DesignGuidelines []Item `json:"designGuidelines"`
}

// Items returns the slice backing category c.
func (d Document) Items(c Category) []Item {
	switch c {
	case Functional:
		return d.Functional
	case NonFunctional:
		return d.NonFunctional
	case Constraints:
		return d.Constraints
	case Wishes:
		return d.Wishes
	case DesignGuidelines:
		return d.DesignGuidelines
	}
	return nil
}

func (d *Document) set(c Category, items []Item) {
	switch c {
	case Functional:
		d.Functional = items
	case NonFunctional:
		d.NonFunctional = items
	case Constraints:
		d.Constraints = items
	case Wishes:
		d.Wishes = items
	case DesignGuidelines:
		d.DesignGuidelines = items
	}
}

// Total returns the number of items across all categories.
func (d Document) Total() int {
	n := 0
	for _, c := range Categories {
		n += len(d.Items(c))
	}
	return n
}

// IsEmpty reports whether no category holds an item.
func (d Document) IsEmpty() bool { return d.Total() == 0 }

// Clone returns a deep copy whose slices are never nil, so that the JSON
// encoding always carries five arrays.
func (d Document) Clone() Document {
	var out Document
	for _, c := range Categories {
		src := d.Items(c)
		dst := make([]Item, len(src))
		copy(dst, src)
		out.set(c, dst)
	}
	return out
}

// Deployment environments accepted in an architecture.
const (
	DeployCloud     = "cloud"
	DeployOnPremise = "on_premise"
	DeployHybrid    = "hybrid"
)

// Component types accepted in an architecture.
var ComponentTypes = []string{"frontend", "backend", "database", "infrastructure", "security", "integration"}

// Architecture types with a known display label. ArchitectureAuto is only
// meaningful as a preference hint.
const (
	ArchitectureAuto          = "auto"
	ArchitectureMonolithic    = "monolithic"
	ArchitectureMicroservices = "microservices"
	ArchitectureServerless    = "serverless"
	ArchitectureSPAAPI        = "spa_api"
	ArchitectureMobileBackend = "mobile_backend"
	ArchitectureEventDriven   = "event_driven"
)

// ArchitectureTypes lists the architecture types with a display label.
var ArchitectureTypes = []string{
	ArchitectureMonolithic, ArchitectureMicroservices, ArchitectureServerless,
	ArchitectureSPAAPI, ArchitectureMobileBackend, ArchitectureEventDriven,
}

// ValidPreference reports whether t is accepted as a preferred architecture
// hint: empty, "auto", or one of ArchitectureTypes.
func ValidPreference(t string) bool {
	return t == "" || t == ArchitectureAuto || slices.Contains(ArchitectureTypes, t)
}

// Component is one building block of a derived architecture.
type Component struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Technologies  []string `json:"technologies"`
	Justification string   `json:"justification"`
}

// Architecture is derived from a Document snapshot and always replaced whole.
type Architecture struct {
	ArchitectureType          string      `json:"architecture_type"`
	DeploymentEnvironment     string      `json:"deployment_environment"`
	Components                []Component `json:"components"`
	NetworkRequirements       []string    `json:"network_requirements"`
	SecurityMeasures          []string    `json:"security_measures"`
	ScalabilityConsiderations []string    `json:"scalability_considerations"`
}

// Sender of a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is an entry of the append-only conversation log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// Validation statuses.
const (
	StatusGood     = "good"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// PassingScore is the completeness score at which a requirement set passes.
const PassingScore = 50

// CriticalQuestions flags information the validator considers essential.
type CriticalQuestions struct {
	SystemTypeMissing   bool `json:"system_type_missing"`
	PersonalDataMissing bool `json:"personal_data_missing"`
	UserScopeMissing    bool `json:"user_scope_missing"`
}

// ValidationResult is the validator's assessment of a Document.
type ValidationResult struct {
	OverallStatus       string            `json:"overall_status"`
	MissingRequirements []string          `json:"missing_requirements"`
	Contradictions      []string          `json:"contradictions"`
	UnclearRequirements []string          `json:"unclear_requirements"`
	Recommendations     []string          `json:"recommendations"`
	CompletenessScore   int               `json:"completeness_score"`
	CriticalQuestions   CriticalQuestions `json:"critical_questions"`
}

// Passed reports whether the score reaches PassingScore.
func (v ValidationResult) Passed() bool { return v.CompletenessScore >= PassingScore }
