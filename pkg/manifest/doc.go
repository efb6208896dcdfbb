/*
Package manifest decodes declarative YAML manifests and applies them to a
manager.

A manifest is a stream of YAML documents separated by "---". Every document
has the same envelope:

	apiVersion: virtplane.io/v1
	kind: Volume
	metadata:
	  name: db-data
	  project: shop
	  labels:
	    tier: db
	spec:
	  pool: ceph-fast
	  sizeBytes: 107374182400

The spec holds the entity's own spec fields plus references to parents by
name (cluster, pool, network, node, speaker). References resolve against
entities already stored, so parents must come earlier in the stream or be
applied before it. Resources without metadata.project use the manager's
default project.

Applying a resource that already exists replaces its labels and spec. An
update that changes nothing but the modification time is reported unchanged.
Load balancer listeners keep their IDs by name across reapplies. Node
documents admit the node as READY with allocatable capacity taken from its
spec. RegistrationToken documents always issue a fresh token.
*/
package manifest
