/*
Package scheduler places pending virtual machines on nodes.

A VM is pending when its state is PENDING and it has no node. Every
ScheduleInterval the scheduler lists pending VMs oldest first and the
schedulable nodes (READY with the compute role), then for each VM:

  - drops nodes that fail the VM's placement policy (cluster, node selector)
  - drops nodes without enough free vCPUs or memory
  - picks the node with the most free memory, then the fewest VMs, then the
    lowest ID

Placement reserves the VM's resources on the node first and then records
the node on the VM; if the VM write fails the reservation is released.
Capacity taken earlier in the same cycle counts against later VMs. A VM that
fits nowhere stays pending with a message and is retried next cycle.
*/
package scheduler
