//go:build cgo

package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import (
	"os"
	"sync"
	"unsafe"

	"github.com/cmdfuzz/cmdfuzz/afl"
)

var (
	pluginOnce sync.Once
	mutator    *plugin
	pluginErr  error

	// buffers maps every live session to its C output buffers.
	buffers   = make(map[afl.Handle]*sessionBuffers)
	buffersMu sync.Mutex
)

// cBuf is a C allocated buffer handed to the host. It stays valid until the
// next call that fills it or the end of its session.
type cBuf struct {
	ptr unsafe.Pointer
	cap int
}

// fill copies data into the buffer, growing it if needed.
func (b *cBuf) fill(data []byte) *C.uint8_t {
	if len(data) > b.cap {
		C.free(b.ptr)
		b.ptr = C.malloc(C.size_t(len(data)))
		b.cap = len(data)
	}
	if len(data) > 0 {
		copy(unsafe.Slice((*byte)(b.ptr), len(data)), data)
	}

	return (*C.uint8_t)(b.ptr)
}

func (b *cBuf) free() {
	C.free(b.ptr)
	b.ptr = nil
	b.cap = 0
}

// sessionBuffers are the output buffers of one session.
type sessionBuffers struct {
	fuzz cBuf
	post cBuf
}

// handleOf reads the session handle behind the host's data pointer.
func handleOf(data unsafe.Pointer) afl.Handle {
	return afl.Handle(*(*C.uint64_t)(data))
}

func sessionBuffersOf(h afl.Handle) *sessionBuffers {
	buffersMu.Lock()
	defer buffersMu.Unlock()

	return buffers[h]
}

//export afl_custom_init
func afl_custom_init(host unsafe.Pointer, seed C.uint) unsafe.Pointer {
	pluginOnce.Do(func() {
		mutator, pluginErr = newPlugin(os.Getenv)
	})
	if pluginErr != nil {
		_, _ = os.Stderr.WriteString("[cmdfuzz] " + pluginErr.Error() +
			"\n")
		return nil
	}

	h, err := mutator.start(
		afl.HostContext(uintptr(host)), uint32(seed),
	)
	if err != nil {
		log.Errorf("Unable to start mutator session: %v", err)
		return nil
	}

	buffersMu.Lock()
	buffers[h] = &sessionBuffers{}
	buffersMu.Unlock()

	data := C.malloc(C.size_t(unsafe.Sizeof(C.uint64_t(0))))
	*(*C.uint64_t)(data) = C.uint64_t(h)

	return data
}

//export afl_custom_fuzz
func afl_custom_fuzz(data unsafe.Pointer, buf *C.uint8_t, bufSize C.size_t,
	outBuf **C.uint8_t, addBuf *C.uint8_t, addBufSize C.size_t,
	maxSize C.size_t) C.size_t {

	h := handleOf(data)
	in := C.GoBytes(unsafe.Pointer(buf), C.int(bufSize))

	out := mutator.fuzz(h, in, int(maxSize))
	if len(out) == 0 {
		return 0
	}

	*outBuf = sessionBuffersOf(h).fuzz.fill(out)

	return C.size_t(len(out))
}

//export afl_custom_post_process
func afl_custom_post_process(data unsafe.Pointer, buf *C.uint8_t,
	bufSize C.size_t, outBuf **C.uint8_t) C.size_t {

	h := handleOf(data)
	in := C.GoBytes(unsafe.Pointer(buf), C.int(bufSize))

	out := mutator.postProcess(h, in)
	if len(out) == 0 {
		return 0
	}

	*outBuf = sessionBuffersOf(h).post.fill(out)

	return C.size_t(len(out))
}

// Trimming removes bytes blindly and would break the encoding, so it is
// declined.

//export afl_custom_init_trim
func afl_custom_init_trim(data unsafe.Pointer, buf *C.uint8_t,
	bufSize C.size_t) C.int32_t {

	return 0
}

//export afl_custom_trim
func afl_custom_trim(data unsafe.Pointer, outBuf **C.uint8_t) C.size_t {
	return 0
}

//export afl_custom_post_trim
func afl_custom_post_trim(data unsafe.Pointer, success C.uchar) C.int32_t {
	return 0
}

//export afl_custom_deinit
func afl_custom_deinit(data unsafe.Pointer) {
	h := handleOf(data)
	C.free(data)

	buffersMu.Lock()
	bufs := buffers[h]
	delete(buffers, h)
	buffersMu.Unlock()

	if bufs != nil {
		bufs.fuzz.free()
		bufs.post.free()
	}

	if err := mutator.adapter.Deinit(h); err != nil {
		log.Errorf("Unable to release mutator session: %v", err)
	}
}
