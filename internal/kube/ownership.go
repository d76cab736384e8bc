// Package kube provides Kubernetes-specific helpers for Job status and
// parent-child association.
package kube

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// LabelCreatedFrom marks Jobs created by the ad-hoc trigger operation
// with the name of the source CronJob. Triggered Jobs carry no owner
// reference (they must survive deletion of the CronJob), so this label
// is the documented fallback for ownership matching.
const LabelCreatedFrom = "kronic.dev/created-from"

// LabelManuallyTriggered marks Jobs created by the trigger operation.
const LabelManuallyTriggered = "kronic.dev/manually-triggered"

// OwnedBy reports whether obj records the given owner. UID match on an
// owner reference is authoritative; a UID-less owner reference entry
// matches by name and kind. The created-from label is the fallback for
// resources that deliberately carry no owner reference.
func OwnedBy(obj metav1.Object, ownerKind, ownerName string, ownerUID types.UID) bool {
	for _, ref := range obj.GetOwnerReferences() {
		if ownerUID != "" && ref.UID == ownerUID {
			return true
		}
		if ref.Kind == ownerKind && ref.Name == ownerName {
			return true
		}
	}

	return obj.GetLabels()[LabelCreatedFrom] == ownerName
}

// JobSucceeded reports whether a Job has completed successfully.
func JobSucceeded(job *batchv1.Job) bool {
	if job == nil {
		return false
	}

	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobComplete && c.Status == corev1.ConditionTrue {
			return true
		}
	}

	return job.Status.Succeeded > 0
}

// JobFailed reports whether a Job has completed unsuccessfully.
func JobFailed(job *batchv1.Job) bool {
	if job == nil {
		return false
	}

	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobFailed && c.Status == corev1.ConditionTrue {
			return true
		}
	}

	// Fallback for Jobs where conditions are not yet observed: failures
	// with nothing active or succeeded is a terminal failed state.
	return job.Status.Failed > 0 && job.Status.Active == 0 && job.Status.Succeeded == 0
}
