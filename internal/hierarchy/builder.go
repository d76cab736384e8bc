package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"

	"github.com/kronic-dev/kronic/internal/kube"
	"github.com/kronic-dev/kronic/internal/resource"
)

// Builder assembles views from cluster reads. It is stateless aside from
// the injected client; the clock is injectable for tests.
type Builder struct {
	resources *resource.Client
	now       func() time.Time
	log       logr.Logger
}

// NewBuilder constructs a Builder over the normalized resource client.
func NewBuilder(resources *resource.Client, log logr.Logger) *Builder {
	return &Builder{
		resources: resources,
		now:       time.Now,
		log:       log.WithName("hierarchy"),
	}
}

// WithClock overrides the wall clock. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// ListViews returns summary views of the CronJobs across the given
// namespaces, one list call per namespace, sorted by namespace then name.
func (b *Builder) ListViews(ctx context.Context, namespaces []string) ([]CronJobView, error) {
	views := make([]CronJobView, 0)

	for _, ns := range namespaces {
		cronJobs, err := b.resources.ListCronJobs(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("listing CronJobs in %s: %w", ns, err)
		}
		for i := range cronJobs {
			views = append(views, SummaryView(&cronJobs[i]))
		}
	}

	sort.Slice(views, func(i, j int) bool {
		if views[i].Namespace != views[j].Namespace {
			return views[i].Namespace < views[j].Namespace
		}
		return views[i].Name < views[j].Name
	})

	b.log.V(1).Info("listed cronjobs", "namespaces", namespaces, "count", len(views))
	return views, nil
}

// BuildView returns the full view of one CronJob, including its raw YAML
// definition and the owned Job/Pod hierarchy.
func (b *Builder) BuildView(ctx context.Context, namespace, name string) (*CronJobView, error) {
	cj, err := b.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}

	view := SummaryView(cj)

	raw, err := rawDefinition(cj)
	if err != nil {
		return nil, fmt.Errorf("rendering definition of CronJob %s/%s: %w", namespace, name, err)
	}
	view.Definition = raw

	jobs, err := b.hierarchyFor(ctx, cj)
	if err != nil {
		return nil, err
	}
	view.Jobs = jobs
	for i := range jobs {
		if jobs[i].Failed {
			view.Failing = true
			break
		}
	}

	return &view, nil
}

// BuildHierarchy returns the Jobs owned by a CronJob with their Pods
// nested, both ordered newest first.
func (b *Builder) BuildHierarchy(ctx context.Context, namespace, name string) ([]JobView, error) {
	cj, err := b.resources.GetCronJob(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	return b.hierarchyFor(ctx, cj)
}

func (b *Builder) hierarchyFor(ctx context.Context, cj *batchv1.CronJob) ([]JobView, error) {
	jobs, err := b.resources.ListJobs(ctx, cj.Namespace)
	if err != nil {
		return nil, fmt.Errorf("listing Jobs in %s: %w", cj.Namespace, err)
	}

	pods, err := b.resources.ListPods(ctx, cj.Namespace)
	if err != nil {
		return nil, fmt.Errorf("listing Pods in %s: %w", cj.Namespace, err)
	}

	now := b.now()
	views := make([]JobView, 0)
	for i := range jobs {
		job := &jobs[i]
		if !kube.OwnedBy(job, "CronJob", cj.Name, cj.UID) {
			continue
		}

		jv := NewJobView(job, now)
		jv.Pods = podViews(pods, job, now)
		views = append(views, jv)
	}

	// Newest first. This ordering is a UX contract.
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return views, nil
}

func podViews(pods []corev1.Pod, job *batchv1.Job, now time.Time) []PodView {
	views := make([]PodView, 0)
	for i := range pods {
		pod := &pods[i]
		if !kube.OwnedBy(pod, "Job", job.Name, job.UID) {
			continue
		}
		views = append(views, PodView{
			Name:      pod.Name,
			Namespace: pod.Namespace,
			CreatedAt: pod.CreationTimestamp.Time,
			Age:       humanAge(pod.CreationTimestamp.Time, now),
			Phase:     string(pod.Status.Phase),
		})
	}

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})

	return views
}

// NewJobView shapes a Job for presentation, without its Pods.
func NewJobView(job *batchv1.Job, now time.Time) JobView {
	return JobView{
		Name:      job.Name,
		Namespace: job.Namespace,
		CreatedAt: job.CreationTimestamp.Time,
		Age:       humanAge(job.CreationTimestamp.Time, now),
		Failed:    kube.JobFailed(job),
		Pods:      []PodView{},
	}
}

// SummaryView shapes a CronJob for listings: identity, schedule and
// derived fields, without the Job hierarchy or raw definition.
func SummaryView(cj *batchv1.CronJob) CronJobView {
	view := CronJobView{
		Name:                cj.Name,
		Namespace:           cj.Namespace,
		Schedule:            cj.Spec.Schedule,
		ScheduleDescription: InterpretSchedule(cj.Spec.Schedule),
		TimeZone:            cj.Spec.TimeZone,
	}

	if cj.Spec.Suspend != nil {
		view.Suspended = *cj.Spec.Suspend
	}
	if cj.Status.LastScheduleTime != nil {
		t := cj.Status.LastScheduleTime.Time
		view.LastScheduleTime = &t
	}
	if cj.Status.LastSuccessfulTime != nil {
		t := cj.Status.LastSuccessfulTime.Time
		view.LastSuccessfulTime = &t
	}

	if containers := cj.Spec.JobTemplate.Spec.Template.Spec.Containers; len(containers) > 0 {
		view.Image = containers[0].Image
		view.Command = containers[0].Command
		view.Args = containers[0].Args
	}

	return view
}

// rawDefinition renders a CronJob as YAML for round-trip editing,
// stripping managedFields the way the UI expects.
func rawDefinition(cj *batchv1.CronJob) (string, error) {
	clean := cj.DeepCopy()
	clean.SetManagedFields(nil)
	clean.APIVersion = batchv1.SchemeGroupVersion.String()
	clean.Kind = "CronJob"

	out, err := yaml.Marshal(clean)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
