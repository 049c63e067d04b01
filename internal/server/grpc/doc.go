// Package grpcserver serves the standard grpc.health.v1 service so that
// orchestrators can probe a drumbeat instance over gRPC. Health follows the
// runtime's store ping.
//
//	s := grpcserver.New(rt, logger)
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
