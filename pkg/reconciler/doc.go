/*
Package reconciler runs the loop that repairs observed state.

Each cycle, every ReconcileInterval:

 1. Nodes. A node whose last heartbeat (or creation, if it never sent one)
    is older than HeartbeatTimeout moves to NOT_READY with a Heartbeat
    condition and a node.not_ready event. Nodes in MAINTENANCE or already
    NOT_READY are left alone; the node's next heartbeat makes it READY
    again. Status.VMIDs is recomputed from the VMs that name the node.
    Both writes patch the stored node, so a reservation the scheduler made
    after the snapshot is kept, and nothing is written when nothing changed.
 2. VMs. A VM whose node no longer exists goes back to PENDING with no node,
    so the scheduler places it again.
 3. Volumes. An attachment to a VM that no longer exists is released and the
    volume is flagged with a message.
 4. Tokens. Expired registration tokens are deleted.

Only status patches are used, so a cycle never overwrites a spec written
concurrently by a user. A VM is requeued only while it still names the
missing node. Failures on one entity are logged and skipped; a
failure to list a kind aborts the cycle and marks the component unhealthy
in the health registry until the next good cycle.

	r := reconciler.NewReconciler(mgr)
	r.Start()
	defer r.Stop()

	// or drive it by hand
	result, err := r.ReconcileOnce()
*/
package reconciler
