/*
Package api serves the control plane's HTTP endpoints.

HealthServer mounts three routes on one mux:

	/health   liveness; 200 while the process runs
	/ready    readiness; 200 when the manager exists and the store,
	          reconciler and scheduler report healthy, 503 otherwise
	/metrics  Prometheus exposition of the default registry

Readiness reads the component registry in package metrics, so a reconciler
or scheduler whose last cycle failed takes the process out of rotation until
a later cycle succeeds. The /ready body also carries per-kind entity counts.

	hs := api.NewHealthServer(mgr, version)
	go func() {
		if err := hs.Start(":9090"); err != nil {
			logger.Error().Err(err).Msg("health server")
		}
	}()
	defer hs.Shutdown(ctx)

Entity operations have no HTTP surface; callers embed the manager.
*/
package api
