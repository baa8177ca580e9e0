// Package server provides HTTP routing, middleware, and session-backed
// authentication for the playlist analysis web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, so route
// patterns may carry method prefixes and path wildcards.
//
// # Authentication
//
// Browser authentication is cookie-based: the OAuth authorization code flow
// runs through /login and /callback, and a successful exchange stores the
// token server-side keyed by an opaque session id set as an HTTP-only cookie.
// [SessionAuth] resolves incoming requests to an authenticated Spotify client,
// transparently refreshing expired tokens.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
