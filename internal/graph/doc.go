// Package graph implements the dependency graph at the core of girder.
//
// A Node is one vertex of the graph: a buildable artifact with explicit
// sources, explicit non-source dependencies, scanner-discovered implicit
// dependencies, and an ignore list subtracted from all of them.
// Artifact-specific behavior (existence checks, content reads, up-to-date
// checks, persistence and cache hooks) is injected through the Artifact
// strategy, so the Node itself stays agnostic of files, aliases, or
// in-memory values.
//
// The package also provides the machinery a build driver needs: the Walker
// for iterative post-order traversal with cycle reporting, the Executor
// that binds one action list to a group of targets and runs it at most once
// per cycle, and the NodeInfo/BuildInfo records that feed the signature
// database.
package graph
