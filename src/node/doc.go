// Package node implements the sensor network protocol.
//
// Every node runs the same state machine, with four roles defined in the state
// package. Idle nodes answer the master's Requests with their readings and
// remember the averages it broadcasts. When the master falls silent for
// longer than the master-gone timeout, nodes hold an election: each draws a
// random 32-bit vote, and a node that sees a stronger vote than its own
// concedes and waits for the winner. A candidate that hears nothing stronger
// before its poll timer fires becomes Master.
//
// Master
//
// The master periodically broadcasts a Request and samples its own sensor.
// It keeps the latest reading of every peer in a peers.Index and broadcasts
// an InfoMessage whenever one of the two averages changes. A master that
// hears a Vote steps down with a ResetMaster and joins the election; one that
// hears another master's traffic steps down and goes back to Idle.
//
// Timers
//
// A Node never blocks and owns no goroutine. All its work is done in
// callbacks: the transport Handler, and the jobs of the three Timers it is
// given. At most one of them is armed at any time.
package node
