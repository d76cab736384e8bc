// Package validation checks user-supplied CronJob definitions before
// they reach the cluster. Validation is two-phase: a parse failure stops
// immediately with a single issue, while semantic checks all run so the
// caller can present every violation together.
package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
	"sigs.k8s.io/yaml"
)

// scheduleParser accepts standard 5-field cron expressions.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// validAPIVersions are the CronJob API versions accepted for editing.
var validAPIVersions = []string{"batch/v1", "batch/v1beta1"}

// DocumentField is the issue field used when the document itself cannot
// be parsed, as opposed to a specific field failing a semantic check.
const DocumentField = "(document)"

// Issue is one validation failure, addressed by field path.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// document captures just the fields validation inspects. Unknown fields
// pass through untouched; the cluster is the authority on the full
// schema and rejects anything it cannot apply.
type document struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   metadata `json:"metadata"`
	Spec       spec     `json:"spec"`
}

type metadata struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

type spec struct {
	Schedule    string       `json:"schedule"`
	JobTemplate *jobTemplate `json:"jobTemplate"`
}

type jobTemplate struct {
	Spec *jobSpec `json:"spec"`
}

type jobSpec struct {
	Template *podTemplate `json:"template"`
}

type podTemplate struct {
	Spec *podSpec `json:"spec"`
}

type podSpec struct {
	Containers []container `json:"containers"`
}

type container struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Validate checks yamlText as a CronJob destined for expectedNamespace.
// An empty result means the document is valid.
func Validate(yamlText, expectedNamespace string) []Issue {
	var doc document
	if err := yaml.Unmarshal([]byte(yamlText), &doc); err != nil {
		return []Issue{{Field: DocumentField, Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}

	var issues []Issue
	add := func(field, format string, args ...any) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if doc.Kind != "CronJob" {
		add("kind", "expected %q, got %q", "CronJob", doc.Kind)
	}

	if doc.APIVersion != "" && !slices.Contains(validAPIVersions, doc.APIVersion) {
		add("apiVersion", "invalid %q, expected one of: %s", doc.APIVersion, strings.Join(validAPIVersions, ", "))
	}

	if doc.Metadata.Name == "" {
		add("metadata.name", "is required")
	}

	switch {
	case doc.Metadata.Namespace == "":
		add("metadata.namespace", "is required")
	case doc.Metadata.Namespace != expectedNamespace:
		add("metadata.namespace", "must be %q, got %q", expectedNamespace, doc.Metadata.Namespace)
	}

	validateSchedule(doc.Spec.Schedule, add)
	validateContainers(doc.Spec, add)

	return issues
}

func validateSchedule(schedule string, add func(field, format string, args ...any)) {
	if strings.TrimSpace(schedule) == "" {
		add("spec.schedule", "is required")
		return
	}

	fields := strings.Fields(schedule)
	if len(fields) != 5 {
		add("spec.schedule", "%q must have exactly 5 fields (minute hour day-of-month month day-of-week), got %d", schedule, len(fields))
		return
	}

	if _, err := scheduleParser.Parse(schedule); err != nil {
		add("spec.schedule", "%q is not a valid cron expression: %v", schedule, err)
	}
}

func validateContainers(s spec, add func(field, format string, args ...any)) {
	if s.JobTemplate == nil || s.JobTemplate.Spec == nil ||
		s.JobTemplate.Spec.Template == nil || s.JobTemplate.Spec.Template.Spec == nil ||
		len(s.JobTemplate.Spec.Template.Spec.Containers) == 0 {
		add("spec.jobTemplate.spec.template.spec.containers", "at least one container is required")
		return
	}

	for i, c := range s.JobTemplate.Spec.Template.Spec.Containers {
		prefix := fmt.Sprintf("spec.jobTemplate.spec.template.spec.containers[%d]", i)
		if c.Name == "" {
			add(prefix+".name", "is required")
		}
		if c.Image == "" {
			add(prefix+".image", "is required")
		}
	}
}
