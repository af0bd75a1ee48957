package gfx

// PerformanceStats is a read-only aggregate over the active backend's
// resource tables plus frame timing and MSAA state. It is recomputed on
// request and is not itself a source of truth.
type PerformanceStats struct {
	BufferCount   int
	TextureCount  int
	ShaderCount   int
	PipelineCount int

	// AllocatedMemory is the number of bytes of GPU memory currently
	// reserved by the context's allocator pools.
	AllocatedMemory uint64

	// FrameTime is the duration of the last completed frame in seconds.
	FrameTime float64

	MSAASamples int
	MSAAEnabled bool
}
