// Package service is the facade the presentation tier talks to. Every
// operation passes the namespace access policy before any cluster call;
// builder and engine sit behind it, and mutations emit audit events and
// metrics.
package service

import (
	"context"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"

	kronicerrors "github.com/kronic-dev/kronic/internal/errors"
	"github.com/kronic-dev/kronic/internal/engine"
	"github.com/kronic-dev/kronic/internal/hierarchy"
	"github.com/kronic-dev/kronic/internal/logging"
	"github.com/kronic-dev/kronic/internal/metrics"
	"github.com/kronic-dev/kronic/internal/policy"
	"github.com/kronic-dev/kronic/internal/resource"
	"github.com/kronic-dev/kronic/internal/validation"
)

// defaultLogTailLines bounds pod log reads the way the UI expects.
const defaultLogTailLines = 1000

// Service composes the policy, hierarchy builder, and mutation engine
// into the externally exposed operation set. It holds no mutable state;
// every call re-reads from the cluster.
type Service struct {
	policy    *policy.NamespaceAccess
	resources *resource.Client
	builder   *hierarchy.Builder
	engine    *engine.Engine
	log       logr.Logger
}

// New wires the facade from its injected collaborators.
func New(p *policy.NamespaceAccess, resources *resource.Client, builder *hierarchy.Builder, eng *engine.Engine, log logr.Logger) *Service {
	return &Service{
		policy:    p,
		resources: resources,
		builder:   builder,
		engine:    eng,
		log:       log.WithName("service"),
	}
}

// require gates an operation on the access policy and records denials.
func (s *Service) require(namespace string) error {
	if err := s.policy.Require(namespace); err != nil {
		metrics.RecordAccessDenied(namespace)
		return err
	}
	return nil
}

// finish records the operation outcome for metrics.
func finish(rec *metrics.Recorder, err error) {
	switch {
	case err == nil:
		rec.Done("success")
	case kronicerrors.IsAccessDenied(err):
		rec.Done("access_denied")
	case kronicerrors.IsNotFound(err):
		rec.Done("not_found")
	case kronicerrors.IsConflict(err):
		rec.Done("conflict")
	case kronicerrors.IsValidationFailed(err):
		rec.Done("validation_failed")
	case kronicerrors.IsMalformedInput(err):
		rec.Done("malformed_input")
	case kronicerrors.IsUnavailable(err):
		rec.Done("unavailable")
	default:
		rec.Done("error")
	}
}

// ListCronJobs returns summary views across the requested namespaces.
// With no namespaces given, the policy's allowed set is used; in
// unrestricted mode the cluster's namespaces are discovered first. One
// list call is issued per namespace, each behind the policy.
func (s *Service) ListCronJobs(ctx context.Context, namespaces []string) (views []hierarchy.CronJobView, err error) {
	rec := metrics.StartOperation("list_cronjobs")
	defer func() { finish(rec, err) }()

	if len(namespaces) == 0 {
		namespaces = s.policy.AllowedNamespaces()
	}
	if len(namespaces) == 0 {
		discovered, derr := s.resources.ListNamespaceNames(ctx)
		if derr != nil {
			return nil, derr
		}
		namespaces = discovered
	}

	for _, ns := range namespaces {
		if err = s.require(ns); err != nil {
			return nil, err
		}
	}

	return s.builder.ListViews(ctx, namespaces)
}

// ListNamespaces returns the number of CronJobs per accessible namespace.
func (s *Service) ListNamespaces(ctx context.Context) (map[string]int, error) {
	views, err := s.ListCronJobs(ctx, nil)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, v := range views {
		counts[v.Namespace]++
	}
	return counts, nil
}

// GetCronJob returns the full view of one CronJob, including its raw
// definition for round-trip editing.
func (s *Service) GetCronJob(ctx context.Context, namespace, name string) (view *hierarchy.CronJobView, err error) {
	rec := metrics.StartOperation("get_cronjob")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}
	return s.builder.BuildView(ctx, namespace, name)
}

// GetHierarchy returns the Jobs owned by a CronJob with nested Pods,
// newest first.
func (s *Service) GetHierarchy(ctx context.Context, namespace, name string) (jobs []hierarchy.JobView, err error) {
	rec := metrics.StartOperation("get_hierarchy")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}
	return s.builder.BuildHierarchy(ctx, namespace, name)
}

// GetPodLogs returns the trailing log lines of one Pod.
func (s *Service) GetPodLogs(ctx context.Context, namespace, podName string) (logs string, err error) {
	rec := metrics.StartOperation("get_pod_logs")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return "", err
	}
	return s.resources.PodLogs(ctx, namespace, podName, defaultLogTailLines)
}

// SuspendCronJob sets the suspend flag. Requesting the current value is
// a no-op that succeeds.
func (s *Service) SuspendCronJob(ctx context.Context, namespace, name string, desired bool) (view *hierarchy.CronJobView, err error) {
	rec := metrics.StartOperation("suspend_cronjob")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}

	cj, err := s.engine.Suspend(ctx, namespace, name, desired)
	if err != nil {
		return nil, err
	}

	s.audit("cronjob_suspend", namespace, name, map[string]string{
		"suspend": boolString(desired),
	})
	return s.summaryOf(cj), nil
}

// TriggerCronJob creates exactly one ad-hoc Job from the CronJob's
// current job template.
func (s *Service) TriggerCronJob(ctx context.Context, namespace, name string) (view *hierarchy.JobView, err error) {
	rec := metrics.StartOperation("trigger_cronjob")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}

	job, err := s.engine.Trigger(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	s.audit("cronjob_trigger", namespace, name, map[string]string{
		"job": job.Name,
	})
	jv := hierarchy.NewJobView(job, job.CreationTimestamp.Time)
	return &jv, nil
}

// CloneCronJob creates a copy of a CronJob under a new name.
func (s *Service) CloneCronJob(ctx context.Context, namespace, name, newName string) (view *hierarchy.CronJobView, err error) {
	rec := metrics.StartOperation("clone_cronjob")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}

	clone, err := s.engine.Clone(ctx, namespace, name, newName)
	if err != nil {
		return nil, err
	}

	s.audit("cronjob_clone", namespace, name, map[string]string{
		"clone": newName,
	})
	return s.summaryOf(clone), nil
}

// DeleteCronJob deletes a CronJob.
func (s *Service) DeleteCronJob(ctx context.Context, namespace, name string) (err error) {
	rec := metrics.StartOperation("delete_cronjob")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return err
	}

	if err = s.engine.DeleteCronJob(ctx, namespace, name); err != nil {
		return err
	}

	s.audit("cronjob_delete", namespace, name, nil)
	return nil
}

// DeleteJob deletes a Job.
func (s *Service) DeleteJob(ctx context.Context, namespace, name string) (err error) {
	rec := metrics.StartOperation("delete_job")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return err
	}

	if err = s.engine.DeleteJob(ctx, namespace, name); err != nil {
		return err
	}

	s.audit("job_delete", namespace, name, nil)
	return nil
}

// UpdateCronJobSpec validates and replaces a CronJob's definition.
func (s *Service) UpdateCronJobSpec(ctx context.Context, namespace, name, yamlText string) (view *hierarchy.CronJobView, err error) {
	rec := metrics.StartOperation("update_cronjob_spec")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}

	cj, err := s.engine.UpdateSpec(ctx, namespace, name, yamlText)
	if err != nil {
		return nil, err
	}

	s.audit("cronjob_update", namespace, name, nil)
	return s.summaryOf(cj), nil
}

// ValidateYaml checks a CronJob definition destined for a namespace
// without touching the cluster. Still policy-gated: validation results
// must not leak whether anything exists in a forbidden namespace.
func (s *Service) ValidateYaml(yamlText, namespace string) (issues []validation.Issue, err error) {
	rec := metrics.StartOperation("validate_yaml")
	defer func() { finish(rec, err) }()

	if err = s.require(namespace); err != nil {
		return nil, err
	}
	return validation.Validate(yamlText, namespace), nil
}

func (s *Service) summaryOf(cj *batchv1.CronJob) *hierarchy.CronJobView {
	view := hierarchy.SummaryView(cj)
	return &view
}

func (s *Service) audit(eventType, namespace, name string, extra map[string]string) {
	fields := map[string]string{
		"namespace": namespace,
		"name":      name,
	}
	for k, v := range extra {
		fields[k] = v
	}
	logging.LogAuditEvent(s.log, eventType, fields)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
