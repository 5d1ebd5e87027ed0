// Package tools implements the tool contract used by the agent runner:
// a declared, inspectable input shape per tool, a registry enforcing unique
// names, and an executor that validates input, bounds execution time, and
// reports failures back into the conversation instead of aborting the run.
package tools
