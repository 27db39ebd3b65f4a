// Package loadtest drives a storm run: it expands one artifact into a batch of
// uniquely identified jobs, executes them on a bounded worker pool and
// summarizes the latency of the successful ones.
//
// # Jobs
//
// GenerateJobs produces count jobs that all point at the same file. Content
// ids are unique per job:
//
//	storm-<inline|url>-<YYYY-MM-DD>-<uuid>-<basename>
//
// The file is not read until a worker executes the job.
//
// # Dispatching
//
// A Dispatcher admits every job up front and never runs more than Workers of
// them at once. Every job yields exactly one Result, including jobs whose
// executor panicked:
//
//	d := loadtest.NewDispatcher(&loadtest.Config{
//	    Workers:  50,
//	    Progress: printer.Update,
//	}, loadtest.NewEncoder(client))
//
//	results := d.RunAll(ctx, jobs)
//
// Results arrive in completion order. Stream exposes the same results as a
// channel for callers that want to consume them as they finish.
//
// # Summaries
//
// Summarize excludes failed jobs from the latency samples and reports the
// value at index floor(p*(n-1)) of the ascending samples for p75, p95 and
// p99. With no successful samples the percentiles are undefined and
// PercentileSummary.Percentiles is nil.
package loadtest
