// Package websocket pushes forecast events to browsers. Each client watches
// one workspace and only receives that workspace's messages.
package websocket
