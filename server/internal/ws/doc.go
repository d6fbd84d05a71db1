// Package ws implements the WebSocket hub for winsight-server.
//
// Hub broadcasts the current host snapshot to every connected client on a
// configurable interval (server.broadcast_interval, default 5s). A client
// gets the snapshot immediately on connect, then one message per tick:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ },
//	  "firing_alerts": 1
//	}
//
// The upgrader accepts all origins. The server mounts the hub at /ws/stream.
package ws
