// Package pipeline executes a crawl run as an ordered sequence of steps.
//
// Each step owns one state of the run's state machine (DISCOVER, WALK,
// FILTER, DEDUP_MERGE, PERSIST) and mutates the shared State as it runs.
//
// Design decision: We use a step interface instead of direct function
// calls because:
// 1. Steps carry their own configuration and collaborators
// 2. The pipeline can transition the run status uniformly before each step
// 3. The orchestrator can resume the unexecuted local steps after a
//    cancellation to turn an interrupted run into a valid PARTIAL batch
//
// The pipeline stops on the first step error or on context cancellation;
// internal/crawler decides whether what remains becomes PARTIAL or FAILED.
package pipeline
