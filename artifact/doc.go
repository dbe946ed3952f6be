// Package artifact contains core.ArtifactStore implementations. Crews save
// every task result as a markdown artifact named after the task.
package artifact
