// Copyright (c) Companion Authors.
// Licensed under the MIT License.

/*
Package workflow provides the fan-out/fan-in join used by every phase of the
conversation flow.

Join starts a set of independent operations and returns when all of them are
terminal. Failures are reported per operation and never cancel siblings, so a
caller can decide which failures abort its phase and which are tolerated.

	outcomes := workflow.Join(ctx,
		workflow.NewOp("persist", persist),
		workflow.NewOp("route", route),
	)
	if err := outcomes.Err(); err != nil {
		// handle
	}
*/
package workflow
