package vexpr

import "vexpr/internal/eval"

// EvalOption adjusts a single Evaluate call.
type EvalOption func(*eval.Options)

// WithChunkSize evaluates the batch in contiguous chunks of n rows,
// dispatched to a bounded set of workers. Chunking is transparent: the
// output is bit-for-bit identical to the sequential result, because
// every operation is pure and element-wise. Worthwhile only for large
// batches; the default is sequential.
func WithChunkSize(n int) EvalOption {
	return func(o *eval.Options) { o.ChunkSize = n }
}

// WithRows supplies the batch length for expressions that reference no
// variables (for example a constant). Ignored when the program reads
// any input column, where N comes from the columns themselves.
func WithRows(n int) EvalOption {
	return func(o *eval.Options) { o.Rows = n }
}

func buildOptions(opts []EvalOption) eval.Options {
	var o eval.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
