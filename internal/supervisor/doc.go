// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

/*
Package supervisor runs the serve process under a suture v4 supervisor tree.

Crashed services are restarted with backoff, and a context cancel stops the
whole tree within the configured shutdown timeout. Supervisor events
(restarts, backoff, hung services) go to an slog.Logger through sutureslog;
the serve command passes logging.NewSlogLogger so they land in the zerolog
stream.

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), cfg.Server.Supervisor)
	if err != nil {
	    return err
	}
	tree.AddModelService(services.NewReloadService(reloader, cfg.Server.ReloadInterval, logger))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout, logger))
	return tree.Serve(ctx)
*/
package supervisor
