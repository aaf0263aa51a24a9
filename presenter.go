package poisson

import "github.com/gogpu/poisson/internal/gpu"

// Presenter hands finished frames to a presentation engine. See
// gpu.Presenter for the contract.
type Presenter = gpu.Presenter

// Swapchain is the set of presentable images a Presenter cycles.
type Swapchain = gpu.Swapchain

// Signal marks the completion of a frame's GPU work.
type Signal = gpu.Signal

// OffscreenPresenter presents into the swapchain's own images and can
// read the last one back.
type OffscreenPresenter = gpu.OffscreenPresenter
