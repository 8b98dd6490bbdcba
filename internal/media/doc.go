// Package media resolves the media referenced by a generation request
// into a provenance-tagged asset set. Resolution is a pure function of
// the request, the project's chat history, and the project's scenes; it
// never touches storage, so it can run fully in parallel across
// requests.
package media
