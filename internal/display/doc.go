// Package display provides reporter.Display backends: a plain text bar for
// any io.Writer, pterm progress bars for interactive terminals, and a zap
// backend for headless runs where progress belongs in the log stream.
package display
