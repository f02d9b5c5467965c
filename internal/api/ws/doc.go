// Package ws streams viewer events to browser clients over WebSocket.
//
// A client connects to /viewers/:id/stream and receives a "system" frame,
// the current view when one is open, then one frame per loader.Event. A
// client frame {"type":"ping"} is answered with {"type":"pong"}. The stream
// ends with a normal close when the viewer is removed.
package ws
