// Package crawler implements the incremental harvest pipeline: cursor-driven
// pagination over a tag feed, the engagement admission filter, and the
// session loop that walks one or more tags in order. Concrete collaborators
// (transport, feed API, materializer, storage) live in sibling packages and
// are injected through the interfaces declared here.
package crawler
