// Package poisson is a retained-mode render backend for small 3D games.
//
// Calling code creates render passes, one pipeline per render-object type
// in each pass, and drawlets (renderable instances) under each pipeline.
// It then calls RenderFrame once per frame and updates drawlet uniforms
// between frames. The backend records one indexed draw per live drawlet.
//
// # Quick Start
//
//	b, err := poisson.NewBackend(poisson.WithBackend("noop"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Destroy()
//
//	pass, _ := b.CreatePass("main")
//	pipe, err := poisson.CreatePipeline[poisson.ColoredMesh](pass, poisson.ShaderSource{WGSL: src})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mesh, _ := poisson.NewMesh(vertices, []uint32{0, 1, 2})
//	d, _ := pipe.CreateDrawlet(poisson.ColoredMesh{Mesh: mesh, MVP: poisson.Identity()})
//
//	for running {
//		_ = d.SetMVP(camera.Mul(model))
//		if _, err := b.RenderFrame(ctx); err != nil {
//			log.Fatal(err) // device lost
//		}
//	}
//
// # Render-Object Types
//
// The set of render-object types is closed: ColoredMesh, LitColoredMesh
// and TexturedMesh. Each fixes a vertex layout, the bind groups its shader
// declares and the shape of its init data. Pipelines and drawlets are
// generic over the type, so a drawlet handle only offers the operations
// its type supports at run time and lookups are checked (ErrKindMismatch).
//
// # Frames In Flight
//
// Up to FramesInFlight frames may be executing on the GPU while the next
// one is recorded. Uniform buffers are duplicated per frame slot, so
// setters never touch a buffer the GPU may be reading. Removed drawlets
// and destroyed pipelines are unlinked at once and their GPU resources
// released once every frame that could reference them has completed.
//
// # Errors
//
// Construction failures (ErrShaderCompile, ErrPipelineCreate,
// ErrBindGroupMismatch) leave no partial state. Using a handle after
// removal returns ErrStaleHandle. An out-of-date swapchain is recreated
// without surfacing an error. ErrDeviceLost is fatal.
package poisson
