package service

import (
	"context"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/kronic-dev/kronic/internal/engine"
	kronicerrors "github.com/kronic-dev/kronic/internal/errors"
	"github.com/kronic-dev/kronic/internal/hierarchy"
	"github.com/kronic-dev/kronic/internal/policy"
	"github.com/kronic-dev/kronic/internal/resource"
)

// countingClient counts every call that reaches the cluster so tests can
// prove policy denials short-circuit before any I/O.
type countingClient struct {
	client.Client
	calls int
}

func (c *countingClient) Get(ctx context.Context, key client.ObjectKey, obj client.Object, opts ...client.GetOption) error {
	c.calls++
	return c.Client.Get(ctx, key, obj, opts...)
}

func (c *countingClient) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	c.calls++
	return c.Client.List(ctx, list, opts...)
}

func (c *countingClient) Create(ctx context.Context, obj client.Object, opts ...client.CreateOption) error {
	c.calls++
	return c.Client.Create(ctx, obj, opts...)
}

func (c *countingClient) Update(ctx context.Context, obj client.Object, opts ...client.UpdateOption) error {
	c.calls++
	return c.Client.Update(ctx, obj, opts...)
}

func (c *countingClient) Patch(ctx context.Context, obj client.Object, patch client.Patch, opts ...client.PatchOption) error {
	c.calls++
	return c.Client.Patch(ctx, obj, patch, opts...)
}

func (c *countingClient) Delete(ctx context.Context, obj client.Object, opts ...client.DeleteOption) error {
	c.calls++
	return c.Client.Delete(ctx, obj, opts...)
}

type stubLogReader struct{}

func (stubLogReader) PodLogs(_ context.Context, _, _ string, _ int64) (string, error) {
	return "log line\n", nil
}

func newTestService(t *testing.T, allowNamespaces []string, objs ...client.Object) (*Service, *countingClient) {
	t.Helper()

	counting := &countingClient{
		Client: fake.NewClientBuilder().WithScheme(clientgoscheme.Scheme).WithObjects(objs...).Build(),
	}

	resources := resource.NewClient(counting, logr.Discard(), resource.Options{PodLogs: stubLogReader{}})
	access := policy.NewNamespaceAccess(allowNamespaces, false, "", logr.Discard())
	builder := hierarchy.NewBuilder(resources, logr.Discard())
	eng := engine.New(resources, logr.Discard())

	return New(access, resources, builder, eng, logr.Discard()), counting
}

func prodCronJob() *batchv1.CronJob {
	return &batchv1.CronJob{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "nightly",
			Namespace: "prod",
			UID:       types.UID("cj-prod-1"),
		},
		Spec: batchv1.CronJobSpec{
			Schedule: "0 2 * * *",
			Suspend:  ptr.To(false),
			JobTemplate: batchv1.JobTemplateSpec{
				Spec: batchv1.JobSpec{
					Template: corev1.PodTemplateSpec{
						Spec: corev1.PodSpec{
							RestartPolicy: corev1.RestartPolicyNever,
							Containers: []corev1.Container{
								{Name: "report", Image: "report-tool:v7"},
							},
						},
					},
				},
			},
		},
	}
}

func stagingCronJob(name string) *batchv1.CronJob {
	cj := prodCronJob()
	cj.Name = name
	cj.Namespace = "staging"
	cj.UID = types.UID("cj-staging-" + name)
	return cj
}

const minimalYaml = `
apiVersion: batch/v1
kind: CronJob
metadata:
  name: nightly
  namespace: prod
spec:
  schedule: "0 2 * * *"
  jobTemplate:
    spec:
      template:
        spec:
          restartPolicy: Never
          containers:
            - name: report
              image: report-tool:v7
`

func TestDeniedNamespaceMakesNoClusterCalls(t *testing.T) {
	svc, counting := newTestService(t, []string{"staging"}, prodCronJob())
	ctx := context.Background()

	ops := map[string]func() error{
		"list": func() error {
			_, err := svc.ListCronJobs(ctx, []string{"prod"})
			return err
		},
		"get": func() error {
			_, err := svc.GetCronJob(ctx, "prod", "nightly")
			return err
		},
		"hierarchy": func() error {
			_, err := svc.GetHierarchy(ctx, "prod", "nightly")
			return err
		},
		"pod logs": func() error {
			_, err := svc.GetPodLogs(ctx, "prod", "nightly-abc")
			return err
		},
		"suspend": func() error {
			_, err := svc.SuspendCronJob(ctx, "prod", "nightly", true)
			return err
		},
		"trigger": func() error {
			_, err := svc.TriggerCronJob(ctx, "prod", "nightly")
			return err
		},
		"clone": func() error {
			_, err := svc.CloneCronJob(ctx, "prod", "nightly", "nightly-copy")
			return err
		},
		"delete cronjob": func() error {
			return svc.DeleteCronJob(ctx, "prod", "nightly")
		},
		"delete job": func() error {
			return svc.DeleteJob(ctx, "prod", "nightly-abc")
		},
		"update spec": func() error {
			_, err := svc.UpdateCronJobSpec(ctx, "prod", "nightly", minimalYaml)
			return err
		},
		"validate yaml": func() error {
			_, err := svc.ValidateYaml(minimalYaml, "prod")
			return err
		},
	}

	for label, op := range ops {
		err := op()
		require.Error(t, err, label)
		assert.True(t, kronicerrors.IsAccessDenied(err), "%s: got %v", label, err)
	}

	assert.Zero(t, counting.calls, "denied operations must not touch the cluster")
}

func TestSuspendDeniedLeavesTargetUntouched(t *testing.T) {
	svc, counting := newTestService(t, []string{"staging"}, prodCronJob())

	_, err := svc.SuspendCronJob(context.Background(), "prod", "nightly", true)

	require.Error(t, err)
	assert.True(t, kronicerrors.IsAccessDenied(err))

	var cj batchv1.CronJob
	require.NoError(t, counting.Client.Get(context.Background(), types.NamespacedName{Namespace: "prod", Name: "nightly"}, &cj))
	require.NotNil(t, cj.Spec.Suspend)
	assert.False(t, *cj.Spec.Suspend)
}

func TestSuspendAllowed(t *testing.T) {
	svc, _ := newTestService(t, []string{"staging"}, stagingCronJob("nightly"))

	view, err := svc.SuspendCronJob(context.Background(), "staging", "nightly", true)

	require.NoError(t, err)
	assert.True(t, view.Suspended)
}

func TestListCronJobsDefaultsToAllowList(t *testing.T) {
	svc, _ := newTestService(t, []string{"staging"},
		prodCronJob(), stagingCronJob("alpha"), stagingCronJob("beta"))

	views, err := svc.ListCronJobs(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, "staging", v.Namespace)
	}
}

func TestListCronJobsUnrestrictedDiscoversNamespaces(t *testing.T) {
	svc, _ := newTestService(t, nil,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "prod"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "staging"}},
		prodCronJob(), stagingCronJob("alpha"))

	views, err := svc.ListCronJobs(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, views, 2)

	namespaces := []string{views[0].Namespace, views[1].Namespace}
	assert.Contains(t, namespaces, "prod")
	assert.Contains(t, namespaces, "staging")
}

func TestListNamespaces(t *testing.T) {
	svc, _ := newTestService(t, []string{"staging"},
		prodCronJob(), stagingCronJob("alpha"), stagingCronJob("beta"))

	counts, err := svc.ListNamespaces(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"staging": 2}, counts)
}

func TestTriggerCronJob(t *testing.T) {
	svc, counting := newTestService(t, []string{"staging"}, stagingCronJob("nightly"))

	first, err := svc.TriggerCronJob(context.Background(), "staging", "nightly")
	require.NoError(t, err)
	second, err := svc.TriggerCronJob(context.Background(), "staging", "nightly")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.Name, "nightly-manual-"), "got %q", first.Name)
	assert.NotEqual(t, first.Name, second.Name)

	var job batchv1.Job
	require.NoError(t, counting.Client.Get(context.Background(), types.NamespacedName{Namespace: "staging", Name: first.Name}, &job))
	assert.Equal(t, "report-tool:v7", job.Spec.Template.Spec.Containers[0].Image)
}

func TestGetCronJobIncludesDefinition(t *testing.T) {
	svc, _ := newTestService(t, []string{"staging"}, stagingCronJob("nightly"))

	view, err := svc.GetCronJob(context.Background(), "staging", "nightly")

	require.NoError(t, err)
	assert.Equal(t, "nightly", view.Name)
	assert.Contains(t, view.Definition, "0 2 * * *")
}

func TestGetPodLogs(t *testing.T) {
	svc, _ := newTestService(t, []string{"staging"})

	logs, err := svc.GetPodLogs(context.Background(), "staging", "nightly-abc")

	require.NoError(t, err)
	assert.Equal(t, "log line\n", logs)
}

func TestValidateYaml(t *testing.T) {
	svc, counting := newTestService(t, []string{"staging"})

	issues, err := svc.ValidateYaml("kind: CronJob\nmetadata:\n  name: x\n", "staging")

	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(issues), 3)

	fields := make([]string, 0, len(issues))
	for _, issue := range issues {
		fields = append(fields, issue.Field)
	}
	assert.Contains(t, fields, "metadata.namespace")
	assert.Contains(t, fields, "spec.schedule")

	// Pure validation: nothing hits the cluster even when allowed.
	assert.Zero(t, counting.calls)
}

func TestValidateYamlCleanDocument(t *testing.T) {
	svc, _ := newTestService(t, []string{"prod"})

	issues, err := svc.ValidateYaml(minimalYaml, "prod")

	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestUpdateCronJobSpec(t *testing.T) {
	cj := prodCronJob()
	svc, counting := newTestService(t, []string{"prod"}, cj)

	updated := strings.Replace(minimalYaml, `"0 2 * * *"`, `"15 4 * * *"`, 1)
	view, err := svc.UpdateCronJobSpec(context.Background(), "prod", "nightly", updated)

	require.NoError(t, err)
	assert.Equal(t, "15 4 * * *", view.Schedule)

	var stored batchv1.CronJob
	require.NoError(t, counting.Client.Get(context.Background(), types.NamespacedName{Namespace: "prod", Name: "nightly"}, &stored))
	assert.Equal(t, "15 4 * * *", stored.Spec.Schedule)
}

func TestDeleteCronJobRemovesIt(t *testing.T) {
	svc, counting := newTestService(t, []string{"staging"}, stagingCronJob("nightly"))

	require.NoError(t, svc.DeleteCronJob(context.Background(), "staging", "nightly"))

	var cj batchv1.CronJob
	err := counting.Client.Get(context.Background(), types.NamespacedName{Namespace: "staging", Name: "nightly"}, &cj)
	assert.Error(t, err)
}
