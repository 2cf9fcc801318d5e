// Package output renders command results as text, JSON or YAML.
//
// Commands register the -o/--output flag with AddFormatFlag, read it back
// with GetFormatFromCmd and hand structured results to a Formatter. Text
// rendering stays with the command, since only it knows the layout.
package output
