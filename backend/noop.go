package backend

import "github.com/gogpu/poisson/internal/gpu"

func init() {
	Register(BackendNoop, gpu.OpenNoop)
}
