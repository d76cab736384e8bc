// Package engine implements the mutating operations: suspend/resume,
// ad-hoc trigger, clone, delete, and spec replacement. Each operation is
// a single idempotent-or-versioned transition; correctness under
// concurrent writers relies on the cluster's resourceVersion checks, and
// a losing writer gets Conflict rather than an auto-merge.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/yaml"

	kronicerrors "github.com/kronic-dev/kronic/internal/errors"
	"github.com/kronic-dev/kronic/internal/kube"
	"github.com/kronic-dev/kronic/internal/resource"
	"github.com/kronic-dev/kronic/internal/validation"
)

const (
	// triggerPrefixLimit bounds how much of the source name survives in a
	// triggered Job's name, leaving room for the suffix within the 63
	// character limit on resource names.
	triggerPrefixLimit = 16
	maxNameLength      = 63
)

// ValidationError carries the full list of validation issues so callers
// can present them together.
type ValidationError struct {
	Issues []validation.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("%v: %s", kronicerrors.ErrValidationFailed, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return kronicerrors.ErrValidationFailed }

// Engine enacts mutations through the normalized resource client.
type Engine struct {
	resources *resource.Client
	now       func() time.Time
	log       logr.Logger
}

// New constructs an Engine.
func New(resources *resource.Client, log logr.Logger) *Engine {
	return &Engine{
		resources: resources,
		now:       time.Now,
		log:       log.WithName("engine"),
	}
}

// WithClock overrides the wall clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Suspend sets spec.suspend to desired. Requesting the already-current
// value is a no-op that returns the current state without a write; an
// actual change is patched under an optimistic lock so a concurrent
// modification surfaces as Conflict.
func (e *Engine) Suspend(ctx context.Context, namespace, name string, desired bool) (*batchv1.CronJob, error) {
	cj, err := e.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	current := cj.Spec.Suspend != nil && *cj.Spec.Suspend
	if current == desired {
		e.log.V(1).Info("suspend already at desired value", "namespace", namespace, "cronjob", name, "suspend", desired)
		return cj, nil
	}

	patchBase := client.MergeFromWithOptions(cj.DeepCopy(), client.MergeFromWithOptimisticLock{})
	cj.Spec.Suspend = ptr.To(desired)

	if err := e.resources.PatchCronJob(ctx, cj, patchBase); err != nil {
		return nil, err
	}

	e.log.Info("suspend updated", "namespace", namespace, "cronjob", name, "suspend", desired)
	return cj, nil
}

// Trigger creates exactly one ad-hoc Job from the CronJob's job template.
// The CronJob's own schedule, suspend flag, and status are untouched. The
// created Job carries no owner reference so it survives deletion of its
// source; the created-from label records the association instead.
func (e *Engine) Trigger(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	cj, err := e.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	jobName := e.triggerJobName(cj.Name)

	labels := make(map[string]string, len(cj.Spec.JobTemplate.Labels)+2)
	for k, v := range cj.Spec.JobTemplate.Labels {
		labels[k] = v
	}
	labels[kube.LabelManuallyTriggered] = "true"
	labels[kube.LabelCreatedFrom] = cj.Name

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:        jobName,
			Namespace:   namespace,
			Labels:      labels,
			Annotations: copyMap(cj.Spec.JobTemplate.Annotations),
		},
		Spec: *cj.Spec.JobTemplate.Spec.DeepCopy(),
	}

	if err := e.resources.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	e.log.Info("cronjob triggered", "namespace", namespace, "cronjob", name, "job", jobName)
	return job, nil
}

// Clone creates a new CronJob with a spec identical to the source,
// excluding status and server-owned metadata. A name collision fails
// with Conflict and leaves the source untouched.
func (e *Engine) Clone(ctx context.Context, namespace, name, newName string) (*batchv1.CronJob, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, &ValidationError{Issues: []validation.Issue{
			{Field: "metadata.name", Message: "clone target name is required"},
		}}
	}

	src, err := e.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	clone := &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:        newName,
			Namespace:   namespace,
			Labels:      copyMap(src.Labels),
			Annotations: copyMap(src.Annotations),
		},
		Spec: *src.Spec.DeepCopy(),
	}

	if err := e.resources.CreateCronJob(ctx, clone); err != nil {
		return nil, err
	}

	e.log.Info("cronjob cloned", "namespace", namespace, "source", name, "clone", newName)
	return clone, nil
}

// DeleteCronJob deletes a CronJob. Dependent Jobs are left to the
// cluster's garbage collection; seeing them linger briefly afterwards is
// not an error.
func (e *Engine) DeleteCronJob(ctx context.Context, namespace, name string) error {
	if err := e.resources.DeleteCronJob(ctx, namespace, name); err != nil {
		return err
	}
	e.log.Info("cronjob deleted", "namespace", namespace, "cronjob", name)
	return nil
}

// DeleteJob deletes a Job.
func (e *Engine) DeleteJob(ctx context.Context, namespace, name string) error {
	if err := e.resources.DeleteJob(ctx, namespace, name); err != nil {
		return err
	}
	e.log.Info("job deleted", "namespace", namespace, "job", name)
	return nil
}

// UpdateSpec validates yamlText and replaces the CronJob's definition
// with it, keeping the resourceVersion read here so a concurrent
// modification surfaces as Conflict. The caller must re-fetch and retry;
// no auto-merge happens at this layer.
func (e *Engine) UpdateSpec(ctx context.Context, namespace, name, yamlText string) (*batchv1.CronJob, error) {
	issues := validation.Validate(yamlText, namespace)
	if len(issues) > 0 {
		if issues[0].Field == validation.DocumentField {
			return nil, kronicerrors.WrapMalformedInput(fmt.Errorf("%s", issues[0].Message))
		}
		return nil, &ValidationError{Issues: issues}
	}

	var submitted batchv1.CronJob
	if err := yaml.Unmarshal([]byte(yamlText), &submitted); err != nil {
		return nil, kronicerrors.WrapMalformedInput(err)
	}

	if submitted.Name != name {
		return nil, &ValidationError{Issues: []validation.Issue{
			{Field: "metadata.name", Message: fmt.Sprintf("must be %q, got %q", name, submitted.Name)},
		}}
	}

	current, err := e.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	// Replace user-editable parts on top of the live object. Status, UID
	// and resourceVersion stay server-owned: whatever the submitted
	// document carried for them is discarded, and the version read above
	// guards the write.
	desired := current.DeepCopy()
	desired.Spec = *submitted.Spec.DeepCopy()
	desired.Labels = copyMap(submitted.Labels)
	desired.Annotations = copyMap(submitted.Annotations)

	if err := e.resources.UpdateCronJob(ctx, desired); err != nil {
		return nil, err
	}

	e.log.Info("cronjob spec updated", "namespace", namespace, "cronjob", name)
	return desired, nil
}

// triggerJobName derives a collision-resistant Job name from the source
// CronJob: a truncated prefix, a UTC timestamp, and a random suffix for
// repeat triggers within the same second.
func (e *Engine) triggerJobName(source string) string {
	prefix := source
	if len(prefix) > triggerPrefixLimit {
		prefix = prefix[:triggerPrefixLimit]
	}

	suffix := make([]byte, 2)
	_, _ = rand.Read(suffix)

	jobName := fmt.Sprintf("%s-manual-%s-%s", prefix, e.now().UTC().Format("20060102150405"), hex.EncodeToString(suffix))
	if len(jobName) > maxNameLength {
		jobName = jobName[:maxNameLength]
	}
	return strings.Trim(jobName, "-")
}

func copyMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
