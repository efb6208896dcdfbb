package manager

import (
	"fmt"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/types"
)

// AttachVolume attaches a volume to a virtual machine. Attaching to the VM
// that already holds the volume is a no-op.
func (m *Manager) AttachVolume(volumeID, vmID string) (*types.Volume, error) {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	volume, err := m.volumes.Get(volumeID)
	if err != nil {
		return nil, err
	}
	if _, err := m.vms.Get(vmID); err != nil {
		return nil, fmt.Errorf("cannot attach volume %q: %w", volumeID, err)
	}

	if volume.IsAttached() {
		if volume.Status.AttachedVMID == vmID {
			return volume, nil
		}
		return nil, fmt.Errorf("volume %q attached to %q: %w", volumeID, volume.Status.AttachedVMID, ErrVolumeInUse)
	}

	status := volume.Status
	status.AttachedVMID = vmID
	status.Phase = types.VolumePhaseInUse
	status.ErrorMessage = ""

	m.logger.Info().Str("volume_id", volumeID).Str("vm_id", vmID).Msg("Attaching volume")
	return m.volumes.UpdateStatus(volumeID, status)
}

// DetachVolume detaches a volume from whatever VM holds it
func (m *Manager) DetachVolume(volumeID string) (*types.Volume, error) {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	volume, err := m.volumes.Get(volumeID)
	if err != nil {
		return nil, err
	}
	if !volume.IsAttached() {
		return volume, nil
	}
	return m.detachLocked(volume, "")
}

// DetachOrphanedVolume detaches volumeID if it is still attached to vmID,
// recording why in the volume's status. It reports whether a detach happened.
func (m *Manager) DetachOrphanedVolume(volumeID, vmID string) (bool, error) {
	m.attachMu.Lock()
	defer m.attachMu.Unlock()

	volume, err := m.volumes.Get(volumeID)
	if err != nil {
		return false, err
	}
	if volume.Status.AttachedVMID != vmID {
		return false, nil
	}

	message := fmt.Sprintf("detached: virtual machine %s no longer exists", vmID)
	if _, err := m.detachLocked(volume, message); err != nil {
		return false, err
	}

	m.PublishEvent(&events.Event{
		Type:     events.EventVolumeOrphaned,
		Kind:     repository.KindVolume,
		EntityID: volumeID,
		Message:  message,
		Metadata: map[string]string{"vm_id": vmID},
	})
	return true, nil
}

func (m *Manager) detachLocked(volume *types.Volume, message string) (*types.Volume, error) {
	status := volume.Status
	status.AttachedVMID = ""
	status.DevicePath = ""
	status.Phase = types.VolumePhaseReady
	status.ErrorMessage = message

	m.logger.Info().
		Str("volume_id", volume.ID).
		Str("vm_id", volume.Status.AttachedVMID).
		Msg("Detaching volume")
	return m.volumes.UpdateStatus(volume.ID, status)
}
