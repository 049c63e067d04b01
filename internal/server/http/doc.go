// Package httpserver exposes the drumbeat REST interface.
//
// Messages live under /{queue} and /{queue}/{id}; every response uses the
// {"result": ..., "data": ...} envelope. Operational endpoints are
// /v1/healthz and /v1/metrics.
//
//	s := httpserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":3000")
package httpserver
