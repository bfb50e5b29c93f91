// Package app wires the forecast web service together and runs it.
//
// New builds every component from a config.Config:
//
//  1. resolve and create the logs and exports directories
//  2. install OpenTelemetry tracing and the Prometheus metrics exporter
//  3. create the session store, WebSocket hub and services
//  4. build the chi router with middleware and handlers
//
// Run then serves HTTP, the hub and the idle-workspace sweeper in one
// errgroup. Cancelling the context, or a failure in any of them, shuts the
// server down gracefully within Server.ShutdownTimeout.
//
//	application, err := app.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// The package never calls os.Exit; main decides how to exit.
package app
