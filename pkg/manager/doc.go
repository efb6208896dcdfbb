/*
Package manager is the control plane facade. It owns one repository per
entity kind, the event broker and the registration token flow, and it
enforces the rules between kinds that the stores leave to their callers.

# Construction

	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Shutdown()

NewManager validates the config, starts the broker and builds every
repository with the broker as publisher. Extra storage options (clock, ID
generator) are applied after that, which is how tests pin time:

	mgr, _ := manager.NewManager(cfg, storage.WithClock(clock.Now))

There are no package-level stores. Two managers never share state.

# Reference policy

Stores never check references between kinds. The manager refuses a delete
while something still points at the entity and returns ErrHasDependents:

	DeleteCluster         nodes in the cluster
	DeleteNode            VMs placed on the node
	DeleteVM              volumes attached to the VM
	DeleteStoragePool     volumes carved from the pool
	DeleteVirtualNetwork  load balancers, then VPN services on it
	DeleteBGPSpeaker      peers, then advertisements of the speaker
	DeleteVolume          ErrVolumeInUse while attached

The matching Create operations check that the parent exists. Check and write
touch different stores, so a concurrent writer can slip between them; the
reconciler repairs what slips through. Repositories reached through the
accessors (Nodes, VMs, ...) skip all of these checks.

# Volume attachment

AttachVolume and DetachVolume serialize on one mutex and write only the
volume's status. DetachOrphanedVolume is the reconciler's path: it detaches
only if the volume is still attached to the given VM and publishes
volume.orphaned.

# Registration tokens

IssueToken draws 32 random bytes, hex encodes them and stores the token with
an expiry (TokenTTL when the request has none). RegisterNode validates the
token, creates the node in the token's cluster and records the use, all
under the token manager's lock so MaxUses holds under concurrent joins. A
failed usage update rolls the node back. Failures are counted in
virtplane_node_registrations_total by result.

# Configuration

Config is read from YAML over DefaultConfig:

	heartbeatTimeout: 30s
	reconcileInterval: 10s
	scheduleInterval: 5s
	metricsInterval: 15s
	tokenTTL: 24h
	defaultProject: default
	healthAddr: ":9090"
	log:
	  level: info
	  json: false
	manifests:
	  - inventory.yaml

# Metrics

MetricsCollector resets and refills virtplane_entities_by_phase from
PhaseCounts every MetricsInterval.
*/
package manager
