// Package workflow implements the classify / fix / verify state machine.
// Each workflow is identified by an opaque id and advances through
// caller-reported step results; state survives between calls in a Store so
// a workflow can be resumed by any process holding the id.
package workflow
