// Package drive loads files from Google Drive.
//
// Workspace files are exported: Docs as HTML, Sheets as CSV and Slides as
// plain text. Other files are downloaded unchanged. Every loaded document
// carries the Drive file id and web link in its metadata.
package drive
