/*
Package repository binds the generic store to each entity kind.

Every repository picks a store implementation, names the kind's uniqueness
key, fills creation defaults and adds the queries its callers need:

	kind                store        unique by
	Cluster             memory       (project, name)
	Node                memory       hostname, global
	VirtualMachine      memory       (project, name)
	StoragePool         concurrent   (project, name)
	Volume              concurrent   (project, name)
	VirtualNetwork      concurrent   (project, name)
	LoadBalancer        concurrent   (project, name)
	VpnService          concurrent   (project, name)
	BGPSpeaker          concurrent   (project, name)
	BGPPeer             concurrent   (speaker, peer address)
	BGPAdvertisement    concurrent   (speaker, prefix)
	SecurityGroup       concurrent   (project, name)
	RegistrationToken   memory       token value, global

UpdateStatus methods replace only Status and never touch Spec, so the
reconciler and scheduler cannot clobber a concurrent user update.

List methods take a filter struct plus limit and offset and return the page
with the total match count. Offset pages are ordered by creation time and
then ID. The VM repository pages by cursor instead: newest first, and the
cursor is the ID of the last VM of the previous page.

Relationship queries (ListByNode, ListByPoolID, ListByNetwork, ...) are
filtered scans. Nothing here checks that a referenced entity exists; see
package manager.
*/
package repository
