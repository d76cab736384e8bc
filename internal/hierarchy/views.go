// Package hierarchy assembles the CronJob→Job→Pod view of a namespace.
// Views are built fresh per request from cluster reads and never cached;
// derived fields (age, failing, schedule description) are recomputed on
// every call.
package hierarchy

import "time"

// CronJobView is the presentation-ready shape of one CronJob.
type CronJobView struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`

	Schedule string `json:"schedule"`
	// ScheduleDescription is the human-readable interpretation of the
	// cron expression.
	ScheduleDescription string `json:"scheduleDescription"`
	// TimeZone is spec.timeZone when set.
	TimeZone *string `json:"timeZone,omitempty"`

	Suspended          bool       `json:"suspended"`
	LastScheduleTime   *time.Time `json:"lastScheduleTime,omitempty"`
	LastSuccessfulTime *time.Time `json:"lastSuccessfulTime,omitempty"`

	// Image, Command and Args describe the first container of the job
	// template, which is what the UI surfaces.
	Image   string   `json:"image,omitempty"`
	Command []string `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// Failing is true when any Job currently owned by this CronJob
	// reports a failed status. Only populated on full views.
	Failing bool `json:"failing"`

	// Jobs is the owned-Job hierarchy, newest first. Only populated on
	// full views; summary listings leave it nil.
	Jobs []JobView `json:"jobs,omitempty"`

	// Definition is the raw YAML of the CronJob for round-trip editing.
	// Only populated on full views.
	Definition string `json:"definition,omitempty"`
}

// JobView is one execution instance with its Pods nested, newest first.
type JobView struct {
	Name      string    `json:"name"`
	Namespace string    `json:"namespace"`
	CreatedAt time.Time `json:"createdAt"`
	Age       string    `json:"age"`
	Failed    bool      `json:"failed"`
	Pods      []PodView `json:"pods"`
}

// PodView is the smallest unit of the hierarchy.
type PodView struct {
	Name      string    `json:"name"`
	Namespace string    `json:"namespace"`
	CreatedAt time.Time `json:"createdAt"`
	Age       string    `json:"age"`
	Phase     string    `json:"phase,omitempty"`
}
