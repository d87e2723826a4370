// Package content defines the records the media pipeline consumes and
// enriches: documents with hero/asset media references, and the variants the
// processor attaches back onto those references. LoadDocuments extracts these
// records from markdown front matter under the content tree.
package content
