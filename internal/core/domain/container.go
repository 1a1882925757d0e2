package domain

// Container represents a container in the system (Docker, K8s, etc.)
type Container struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Image     string `json:"image"`
	Status    string `json:"status"`
	State     string `json:"state"` // running, exited, etc.
	IPAddress string `json:"ip_address,omitempty"`

	// AdvertisedPort is the port the container declared to the platform
	// (the launchpad.port label). BoundPort is the host port actually
	// published. The launcher treats a mismatch as a startup failure.
	AdvertisedPort int `json:"advertised_port,omitempty"`
	BoundPort      int `json:"bound_port,omitempty"`
}

// Image represents a runtime image produced by a build.
type Image struct {
	Tag     string `json:"tag"`
	BuildID string `json:"build_id"`
}
