// Package resource wraps the cluster client with the normalized,
// namespace-scoped operations the rest of the core is built on. Error
// classification, the retry budget, per-call timeouts, and client-side
// rate limiting all live here so every caller gets identical semantics.
package resource

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"

	kronicerrors "github.com/kronic-dev/kronic/internal/errors"
)

const (
	// defaultQPS bounds the sustained rate of cluster API calls issued by
	// this process, ahead of any server-side limits.
	defaultQPS = rate.Limit(20)
	// defaultBurst allows short bursts above the sustained rate, sized
	// for one hierarchy build across a handful of Jobs.
	defaultBurst = 30
)

// retryBudget bounds retries of transient failures: three attempts with
// the base delay doubling each time. Terminal errors (NotFound,
// Conflict, Forbidden) are never retried.
var retryBudget = wait.Backoff{
	Steps:    3,
	Duration: 200 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
}

// PodLogReader streams logs for a single Pod. The controller-runtime
// client has no log subresource reader, so this is satisfied by a thin
// clientset adapter (NewPodLogReader) in production and a stub in tests.
type PodLogReader interface {
	PodLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error)
}

// Options tune a Client beyond its defaults.
type Options struct {
	// Timeout bounds each individual cluster call. Zero means no
	// per-call timeout beyond the caller's context.
	Timeout time.Duration
	// QPS and Burst configure the client-side rate limiter. Zero values
	// select the defaults.
	QPS   rate.Limit
	Burst int
	// PodLogs provides the log subresource reader. Optional; PodLogs
	// calls fail with a NotFound-style error when unset.
	PodLogs PodLogReader
}

// Client issues namespace-scoped reads and writes for the three resource
// kinds and normalizes every failure into the error taxonomy. It holds
// no mutable state beyond the rate limiter.
type Client struct {
	c       client.Client
	podLogs PodLogReader
	limiter *rate.Limiter
	timeout time.Duration
	log     logr.Logger
}

// NewClient wraps the injected cluster client handle.
func NewClient(c client.Client, log logr.Logger, opts Options) *Client {
	qps := opts.QPS
	if qps == 0 {
		qps = defaultQPS
	}
	burst := opts.Burst
	if burst == 0 {
		burst = defaultBurst
	}

	return &Client{
		c:       c,
		podLogs: opts.PodLogs,
		limiter: rate.NewLimiter(qps, burst),
		timeout: opts.Timeout,
		log:     log.WithName("resource"),
	}
}

// do runs one cluster call under the limiter, per-call timeout, and
// retry budget, and classifies the outcome.
func (r *Client) do(ctx context.Context, verb, kind, namespace, name string, fn func(ctx context.Context) error) error {
	backoff := retryBudget
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return kronicerrors.WrapUnavailable(err)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if r.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		}

		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return nil
		}

		classified := kronicerrors.ClassifyAPIError(verb, kind, namespace, name, err)
		if !kronicerrors.IsUnavailable(classified) {
			return classified
		}
		lastErr = classified

		// The composite operation's deadline wins over the retry budget.
		if attempt >= retryBudget.Steps-1 || ctx.Err() != nil {
			return lastErr
		}

		delay := backoff.Step()
		r.log.V(1).Info("retrying after transient error",
			"verb", verb, "kind", kind, "namespace", namespace, "name", name,
			"attempt", attempt+1, "delay", delay, "error", classified.Error())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return kronicerrors.WrapUnavailable(ctx.Err())
		}
	}
}

// ListCronJobs lists CronJobs in one namespace. Never cluster-wide: the
// access policy is enforced per namespace, so list fan-out happens above.
func (r *Client) ListCronJobs(ctx context.Context, namespace string) ([]batchv1.CronJob, error) {
	var list batchv1.CronJobList
	err := r.do(ctx, "list", "CronJob", namespace, "", func(ctx context.Context) error {
		return r.c.List(ctx, &list, client.InNamespace(namespace))
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetCronJob fetches one CronJob.
func (r *Client) GetCronJob(ctx context.Context, namespace, name string) (*batchv1.CronJob, error) {
	var cj batchv1.CronJob
	err := r.do(ctx, "get", "CronJob", namespace, name, func(ctx context.Context) error {
		return r.c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &cj)
	})
	if err != nil {
		return nil, err
	}
	return &cj, nil
}

// CreateCronJob creates a CronJob. A name collision surfaces as Conflict.
func (r *Client) CreateCronJob(ctx context.Context, cj *batchv1.CronJob) error {
	return r.do(ctx, "create", "CronJob", cj.Namespace, cj.Name, func(ctx context.Context) error {
		return r.c.Create(ctx, cj)
	})
}

// PatchCronJob applies a patch to a CronJob. Callers build the patch
// with an optimistic lock so a stale resourceVersion surfaces as
// Conflict rather than silently clobbering a concurrent write.
func (r *Client) PatchCronJob(ctx context.Context, cj *batchv1.CronJob, patch client.Patch) error {
	return r.do(ctx, "patch", "CronJob", cj.Namespace, cj.Name, func(ctx context.Context) error {
		return r.c.Patch(ctx, cj, patch)
	})
}

// UpdateCronJob replaces a CronJob spec. The object's resourceVersion
// must be the one read at validation time; a concurrent modification
// surfaces as Conflict and is never auto-merged here.
func (r *Client) UpdateCronJob(ctx context.Context, cj *batchv1.CronJob) error {
	return r.do(ctx, "update", "CronJob", cj.Namespace, cj.Name, func(ctx context.Context) error {
		return r.c.Update(ctx, cj)
	})
}

// DeleteCronJob deletes a CronJob. Dependent Jobs are collected by the
// cluster's garbage collector, not by this layer.
func (r *Client) DeleteCronJob(ctx context.Context, namespace, name string) error {
	cj := &batchv1.CronJob{}
	cj.Namespace = namespace
	cj.Name = name
	return r.do(ctx, "delete", "CronJob", namespace, name, func(ctx context.Context) error {
		return r.c.Delete(ctx, cj)
	})
}

// ListJobs lists Jobs in one namespace.
func (r *Client) ListJobs(ctx context.Context, namespace string) ([]batchv1.Job, error) {
	var list batchv1.JobList
	err := r.do(ctx, "list", "Job", namespace, "", func(ctx context.Context) error {
		return r.c.List(ctx, &list, client.InNamespace(namespace))
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetJob fetches one Job.
func (r *Client) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	var job batchv1.Job
	err := r.do(ctx, "get", "Job", namespace, name, func(ctx context.Context) error {
		return r.c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob creates a Job.
func (r *Client) CreateJob(ctx context.Context, job *batchv1.Job) error {
	return r.do(ctx, "create", "Job", job.Namespace, job.Name, func(ctx context.Context) error {
		return r.c.Create(ctx, job)
	})
}

// DeleteJob deletes a Job. Pods still visible immediately afterwards are
// expected; cleanup is the garbage collector's job.
func (r *Client) DeleteJob(ctx context.Context, namespace, name string) error {
	job := &batchv1.Job{}
	job.Namespace = namespace
	job.Name = name
	return r.do(ctx, "delete", "Job", namespace, name, func(ctx context.Context) error {
		return r.c.Delete(ctx, job)
	})
}

// ListPods lists Pods in one namespace.
func (r *Client) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	var list corev1.PodList
	err := r.do(ctx, "list", "Pod", namespace, "", func(ctx context.Context) error {
		return r.c.List(ctx, &list, client.InNamespace(namespace))
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// ListNamespaceNames lists the names of all namespaces. This is the one
// cluster-scoped read in the client: it discovers candidate namespaces
// for unrestricted listings, and every discovered namespace still passes
// the access policy before any namespaced resource is read.
func (r *Client) ListNamespaceNames(ctx context.Context) ([]string, error) {
	var list corev1.NamespaceList
	err := r.do(ctx, "list", "Namespace", "", "", func(ctx context.Context) error {
		return r.c.List(ctx, &list)
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(list.Items))
	for i := range list.Items {
		names = append(names, list.Items[i].Name)
	}
	return names, nil
}

// PodLogs streams the trailing log lines of one Pod.
func (r *Client) PodLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	if r.podLogs == nil {
		return "", kronicerrors.ClassifyAPIError("get", "Pod", namespace, name, errNoLogReader)
	}

	var out string
	err := r.do(ctx, "logs", "Pod", namespace, name, func(ctx context.Context) error {
		logs, err := r.podLogs.PodLogs(ctx, namespace, name, tailLines)
		if err != nil {
			return err
		}
		out = logs
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
