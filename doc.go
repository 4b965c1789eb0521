// Package facilitor provides a plan execution engine built around node
// facilitation: every node of a plan is admitted through a pre-start check
// chain, handed to a facilitator that decides how it runs, and tracked
// through a status state machine until the whole plan finishes.
//
// The engine ships with pluggable service layers:
//
//   - engine     – the driver consuming ready node executions
//   - facilitate – facilitator registry and dispatcher
//   - restraint  – FIFO admission control over shared resources
//   - approval   – human and ticket-driven approval instances
//   - interrupt  – abort/pause/retry of pending nodes
//
// Facilitor is designed to be embedded in host applications.  End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv := facilitor.New()
//	rt := srv.Runtime()
//	rt.Start(ctx)
//	aPlan, _ := rt.LoadPlan(ctx, "release.yaml")
//	planExecution, _ := rt.StartPlan(ctx, aPlan, accountID, nil)
//	planExecution, _ = rt.WaitForPlan(ctx, planExecution.ID, time.Minute)
//
// For more details see the README and individual sub-packages.
package facilitor
