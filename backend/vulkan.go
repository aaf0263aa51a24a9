package backend

import (
	"github.com/gogpu/poisson/internal/gpu"

	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	Register(BackendVulkan, gpu.OpenVulkan)
}
