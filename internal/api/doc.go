// Package api serves the daemon's HTTP control surface with gin.
//
// Routes:
//
//	GET  /healthz
//	GET  /status              control.Snapshot
//	GET  /times?date=...      prayer times for a date (default today)
//	POST /reschedule          request a reschedule pass
//	POST /playback/play       body: optional control.Command fields
//	POST /playback/pause
//	POST /playback/resume
//	POST /playback/stop
//	POST /focus/interrupt     ?permanent=true for a permanent loss
//	POST /focus/restore
//	GET  /metrics             when a metrics handler is configured
package api
