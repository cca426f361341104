// Package api implements the HTTP REST and WebSocket surface of the
// webthing server.
//
// This package provides:
//   - Thing Description documents at each thing's href
//   - REST endpoints for properties, actions, and events
//   - A WebSocket channel multiplexed onto each thing's route for
//     real-time propertyStatus, actionStatus, and event messages
//   - mDNS service registration (_webthing._tcp) for discovery
//   - Middleware stack (request ID, logging, recovery, CORS, body
//     size limit, Host-header validation)
//   - TLS support for production deployments
//
// # Architecture
//
// The server is a thin transport over the thing package: every route
// resolves its target through a thing.Container and calls the Thing's
// contract operations. WebSocket clients register as subscribers on
// the Thing itself, so REST writes, bridge updates, and local drivers
// all reach connected clients through the same fan-out path.
//
// # Addressing
//
// A SingleThing container mounts its thing at the base path. A
// MultipleThings container serves a description list at the base path
// and mounts each thing at {base}/{index}.
//
// # Graceful Degradation
//
// History and database handles are optional. Without them the
// /history route is absent and metrics omit pool statistics; the
// protocol surface is unaffected.
package api
