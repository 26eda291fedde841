// Package catalog talks to the Calibre library manager.
//
// The Client enumerates documents with their stored formats, resolves a
// document's stored file for a given format, and registers newly produced
// files as additional formats. Listings and path lookups come from
// `calibredb` by default or, when configured, straight from a read-only
// handle on the library's metadata.db. Registration always goes through
// `calibredb add_format` so the library manager owns every write.
//
// Source resolution is a two-step strategy: the catalog's exact stored path
// first, then a filesystem search rooted at the library. The result is tagged
// with the step that produced it.
package catalog
