//go:build cuda

package compute

/*
#cgo CFLAGS: -I/opt/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -lcudart
#include <stdio.h>
#include <stdlib.h>
#include <cuda_runtime_api.h>

static int device_count(void) {
	int n = 0;
	if (cudaGetDeviceCount(&n) != cudaSuccess) {
		return 0;
	}
	return n;
}

static int device_name(int dev, char* buf, int len) {
	struct cudaDeviceProp prop;
	if (cudaGetDeviceProperties(&prop, dev) != cudaSuccess) {
		return -1;
	}
	snprintf(buf, len, "%s", prop.name);
	return 0;
}

// Forces lazy context creation so a broken driver shows up here rather
// than on the first kernel launch.
static int open_context(int dev) {
	if (cudaSetDevice(dev) != cudaSuccess) {
		return -1;
	}
	if (cudaFree(0) != cudaSuccess) {
		return -1;
	}
	return 0;
}

static void close_context(void) {
	cudaDeviceReset();
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

type CUDAContext struct {
	valid      bool
	deviceName string
	reason     string
	once       sync.Once
}

func NewCUDAContext() *CUDAContext {
	c := &CUDAContext{}

	if int(C.device_count()) == 0 {
		c.reason = "no CUDA device"
		return c
	}

	buf := (*C.char)(C.malloc(256))
	defer C.free(unsafe.Pointer(buf))
	if C.device_name(0, buf, 256) == 0 {
		c.deviceName = C.GoString(buf)
	}

	if C.open_context(0) != 0 {
		c.reason = "context creation failed"
		return c
	}
	c.valid = true
	return c
}

func (c *CUDAContext) Name() string {
	if c.valid {
		return "cuda (" + c.deviceName + ")"
	}
	return "cuda (not available)"
}

func (c *CUDAContext) Valid() bool    { return c.valid }
func (c *CUDAContext) Reason() string { return c.reason }

func (c *CUDAContext) Release() {
	c.once.Do(func() {
		if c.valid {
			C.close_context()
		}
	})
}
