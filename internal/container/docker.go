package container

// DockerEngine implements Engine using the docker CLI.
type DockerEngine struct {
	*cliEngine
}

// NewDockerEngine creates a new Docker engine.
func NewDockerEngine(opts ...Option) *DockerEngine {
	return &DockerEngine{cliEngine: newCLIEngine(string(EngineTypeDocker), opts...)}
}

// PodmanEngine implements Engine using the podman CLI.
type PodmanEngine struct {
	*cliEngine
}

// NewPodmanEngine creates a new Podman engine.
func NewPodmanEngine(opts ...Option) *PodmanEngine {
	return &PodmanEngine{cliEngine: newCLIEngine(string(EngineTypePodman), opts...)}
}
