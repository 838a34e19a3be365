// Package interceptors ships the stock core.Interceptor implementations.
//
// Order matters: the first interceptor passed to core.NewPipeline is the
// outermost. A typical HTTP pipeline is
//
//	core.NewPipeline(actions,
//	    interceptors.Recover(),
//	    interceptors.Tracing(nil),
//	    interceptors.Logging(logger),
//	    interceptors.Metrics(collectors),
//	    interceptors.Validate(rules),
//	)
//
// so panics are caught around everything and validation failures are still
// traced, logged and counted.
package interceptors
