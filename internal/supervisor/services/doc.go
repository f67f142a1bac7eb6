// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

/*
Package services adapts long-running serve components to suture.Service.

	HTTPServerService   ListenAndServe/Shutdown to Serve(ctx)
	ReloadService       periodic checkpoint polling

Return values decide what the supervisor does next:

	nil         service finished, not restarted
	error       service crashed, restarted with backoff
	ctx.Err()   shutdown requested

Every service implements fmt.Stringer; suture uses the name in its events.
*/
package services
