package grpcx

// RequestIDMetadataKey carries the request id in gRPC metadata (keys are lowercase).
const RequestIDMetadataKey = "x-request-id"
