package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// APIVersion is the only manifest version understood by the decoder
const APIVersion = "virtplane.io/v1"

// Manifest kinds
const (
	KindCluster           = "Cluster"
	KindNode              = "Node"
	KindVirtualMachine    = "VirtualMachine"
	KindStoragePool       = "StoragePool"
	KindVolume            = "Volume"
	KindVirtualNetwork    = "VirtualNetwork"
	KindLoadBalancer      = "LoadBalancer"
	KindVpnService        = "VpnService"
	KindBGPSpeaker        = "BGPSpeaker"
	KindBGPPeer           = "BGPPeer"
	KindBGPAdvertisement  = "BGPAdvertisement"
	KindSecurityGroup     = "SecurityGroup"
	KindRegistrationToken = "RegistrationToken"
)

var (
	// ErrUnknownKind is returned for a document whose kind has no repository
	ErrUnknownKind = errors.New("unknown resource kind")

	// ErrInvalidResource is returned for a document missing required fields
	ErrInvalidResource = errors.New("invalid resource")

	// ErrUnresolvedReference is returned when a named parent has not been applied
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Resource is one YAML document of a manifest
type Resource struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// Metadata names a resource and scopes it to a project
type Metadata struct {
	Name    string            `yaml:"name"`
	Project string            `yaml:"project,omitempty"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s %q", r.Kind, r.Metadata.Name)
}

func (r *Resource) validate() error {
	if r.APIVersion != "" && r.APIVersion != APIVersion {
		return fmt.Errorf("%w: %s: unsupported apiVersion %q", ErrInvalidResource, r, r.APIVersion)
	}
	if r.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidResource)
	}
	if r.Metadata.Name == "" && r.Kind != KindBGPAdvertisement {
		return fmt.Errorf("%w: %s: metadata.name is required", ErrInvalidResource, r.Kind)
	}
	return nil
}

// decodeSpec decodes the spec mapping into out; a missing spec leaves out untouched
func (r *Resource) decodeSpec(out interface{}) error {
	if r.Spec.Kind == 0 {
		return nil
	}
	if err := r.Spec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResource, r, err)
	}
	return nil
}

// Decode reads every document of a multi-document YAML stream. Empty
// documents are skipped.
func Decode(reader io.Reader) ([]*Resource, error) {
	dec := yaml.NewDecoder(reader)

	var resources []*Resource
	for doc := 1; ; doc++ {
		var res Resource
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document %d: %w", doc, err)
		}
		if res.Kind == "" && res.Metadata.Name == "" && res.Spec.Kind == 0 {
			continue
		}
		if err := res.validate(); err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		resources = append(resources, &res)
	}
	return resources, nil
}

// DecodeBytes decodes an in-memory manifest
func DecodeBytes(data []byte) ([]*Resource, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeFile reads and decodes a manifest file
func DecodeFile(path string) ([]*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	defer f.Close()

	resources, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resources, nil
}
