// Package filesystem loads local files for ingestion and watches directories
// for new files.
package filesystem
