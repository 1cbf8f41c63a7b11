// Package tollgate provides a payment-gated reverse proxy for API
// marketplaces.
//
// Tollgate forwards client requests to registered third-party upstream APIs,
// injecting stored credentials at the right place (header, bearer token or
// query parameter), and optionally gating access behind an x402 per-request
// micropayment: unpaid requests receive a machine-parseable 402 challenge,
// and no upstream call is ever made until an external facilitator has
// verified and settled the attached proof.
//
// Key properties:
//   - Closed auth-type enum; malformed endpoints are rejected at registration
//   - Endpoint state is re-read per request — price and credential changes
//     apply on the next call
//   - Single-use payment proofs; duplicate submissions are rejected
//   - Composable store pattern with multiple backends (Bun SQL, Redis, Memory)
//   - Binary-safe response relay and hop-by-hop header hygiene
//   - Async call metering kept off the forwarding critical path
//
// Quick start:
//
//	gw, err := tollgate.New(
//	    tollgate.WithStore(memoryStore),
//	    tollgate.WithFacilitator(facilitator),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gw.Start(ctx)
//	defer gw.Stop(ctx)
//
//	http.ListenAndServe(":3000", api.NewHandler(gw, nil))
package tollgate
