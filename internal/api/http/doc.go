/*
Package http exposes the app catalog and viewers over a JSON API.

Routes:

	GET    /                       service banner
	GET    /health                 catalog, viewer and sandbox pool state
	GET    /apps                   built-in then imported apps
	POST   /apps/import            multipart upload: "files" (+ "paths") or one "archive"
	GET    /apps/:id               one app
	DELETE /apps/:id               remove an imported app
	POST   /apps/:id/open          open into ?viewer=<id>, created on demand
	GET    /apps/:id/files/*path   raw bundle file
	GET    /viewers                open viewers
	GET    /viewers/:id            current view
	GET    /viewers/:id/document   host document as HTML
	POST   /viewers/:id/open       open {entry_path} or {markup, style, script}
	DELETE /viewers/:id            close a viewer

An import that finds no manifest or entry file answers 422 with
"imported": false and adds nothing. A duplicate app ID answers 409. An open
overtaken by a newer one answers 409 with "stale": true. Script failures
are not HTTP errors; the view carries the notice and the error text.
*/
package http
