//go:build !cuda

package compute

type CUDAContext struct{}

func NewCUDAContext() *CUDAContext {
	return &CUDAContext{}
}

func (c *CUDAContext) Name() string   { return "cuda (not available)" }
func (c *CUDAContext) Valid() bool    { return false }
func (c *CUDAContext) Release()       {}
func (c *CUDAContext) Reason() string { return "built without the cuda tag" }
