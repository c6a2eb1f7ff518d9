// Package thumbnail extracts a single preview frame from a converted file.
// Generation is optional and best-effort: a failed thumbnail never affects
// the job that produced the output.
package thumbnail
