package poisson

import (
	"strconv"
	"sync/atomic"
)

// PassID identifies a render pass. Unique for the life of the process.
type PassID uint64

// PipelineID identifies a pipeline. Unique for the life of the process.
type PipelineID uint64

// DrawletID identifies a drawlet within its pipeline. IDs increase
// monotonically and are never reused by the same pipeline.
type DrawletID uint64

func (id PassID) String() string     { return "pass#" + strconv.FormatUint(uint64(id), 10) }
func (id PipelineID) String() string { return "pipeline#" + strconv.FormatUint(uint64(id), 10) }
func (id DrawletID) String() string  { return "drawlet#" + strconv.FormatUint(uint64(id), 10) }

var (
	lastPassID     atomic.Uint64
	lastPipelineID atomic.Uint64
)

func nextPassID() PassID         { return PassID(lastPassID.Add(1)) }
func nextPipelineID() PipelineID { return PipelineID(lastPipelineID.Add(1)) }
