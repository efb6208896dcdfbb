/*
Package events provides the in-memory broker that fans out entity change
notifications.

Every store publishes one event after each successful Create, Update, Patch
or Delete. The event type is "<kind>.<action>", for example
"virtual_machine.updated", built with TypeFor. The manager, reconciler and
scheduler add a few control plane events of their own:

	node.registered             a node was admitted with a registration token
	node.not_ready              the reconciler saw a stale heartbeat
	virtual_machine.scheduled   the scheduler placed a VM
	volume.orphaned             an attachment to a deleted VM was released

# Delivery

Publish never blocks the caller. Events go into a bounded queue drained by
one goroutine that copies each event to every subscriber channel. A full
queue or a full subscriber channel drops the event; Dropped reports how many
were lost at the queue. Subscribers that need every change should re-read
the store rather than rely on the stream.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		if ev.Type == events.TypeFor("node", events.ActionDeleted) {
			...
		}
	}

Stop is idempotent. Publishing after Stop is a no-op.
*/
package events
