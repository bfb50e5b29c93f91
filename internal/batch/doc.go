// Package batch exports forecasts for workbooks on disk, either one file at
// a time (Runner) or for every workbook dropped into a watched directory
// (Watcher).
package batch
