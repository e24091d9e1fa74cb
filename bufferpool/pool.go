// Package bufferpool allocates the DMA-capable, physically contiguous
// buffers the decoder engine's source (compressed-stream) queue needs.
//
// Per the spec's allocation-order invariant (§4.C), a Pool is backed by
// DRM "dumb" GEM objects created against the display driver's own DRM
// fd: the buffers are owned by that fd even though only the decoder
// ever reads or writes their contents, which is why a Pool must be
// constructed after the display device is open and torn down only
// after both the decoder and the display driver have released their
// references to its buffers' exported fds.
package bufferpool

import (
	"fmt"

	"github.com/rs/zerolog/log"
	sys "golang.org/x/sys/unix"

	"github.com/tobiasjakobi/mfcplay/drm"
)

// dumbBpp is the bits-per-pixel used for every dumb buffer this pool
// creates. Source buffers hold opaque compressed bytes rather than
// pixels, so an 8-bpp linear layout (width=size in bytes, height=1)
// gives the kernel the simplest possible pitch: one byte per "pixel".
const dumbBpp = 8

// Buffer is one DMA-capable allocation: a GEM handle, its mmap'd
// userspace view, and an export fd independent of the handle's own
// lifetime.
type Buffer struct {
	fd     uintptr
	handle uint32
	size   uint32

	mapped []byte
}

// Map returns the buffer's mmap'd userspace view. The first call
// performs the mmap; subsequent calls return the same slice.
func (b *Buffer) Map() []byte {
	if b.mapped != nil {
		return b.mapped
	}

	offset, err := drm.MapDumbBuffer(b.fd, b.handle)
	if err != nil {
		log.Error().Err(err).Msg("bufferpool: failed to resolve mmap offset")
		return nil
	}

	data, err := sys.Mmap(int(b.fd), int64(offset), int(b.size), sys.PROT_READ|sys.PROT_WRITE, sys.MAP_SHARED)
	if err != nil {
		log.Error().Err(err).Msg("bufferpool: mmap failed")
		return nil
	}

	b.mapped = data
	return b.mapped
}

// ExportFD exports the buffer as a DMA-BUF file descriptor, suitable
// for queueing against the decoder's OUTPUT queue. The returned fd's
// lifetime is independent of the Buffer handle.
func (b *Buffer) ExportFD() int32 {
	fd, err := drm.PrimeHandleToFD(b.fd, b.handle)
	if err != nil {
		log.Error().Err(err).Msg("bufferpool: prime export failed")
		return -1
	}
	return fd
}

// Size returns the buffer's allocated size in bytes.
func (b *Buffer) Size() uint32 {
	return b.size
}

func (b *Buffer) free() error {
	if b.mapped != nil {
		if err := sys.Munmap(b.mapped); err != nil {
			return fmt.Errorf("bufferpool: munmap: %w", err)
		}
		b.mapped = nil
	}
	return drm.DestroyDumbBuffer(b.fd, b.handle)
}

// Pool allocates and owns a set of DMA-capable Buffers against one DRM
// fd. Buffers are never reallocated or grown once Alloc returns them;
// the pool's only further job is Close, which frees every outstanding
// buffer in allocation order.
type Pool struct {
	fd      uintptr
	buffers []*Buffer
}

// New returns a Pool that will allocate buffers against fd (the
// display driver's DRM device fd).
func New(fd uintptr) *Pool {
	return &Pool{fd: fd}
}

// Alloc creates one size-byte DMA-capable buffer.
func (p *Pool) Alloc(size uint32) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("bufferpool: alloc: zero-sized buffer requested")
	}

	handle, _, allocSize, err := drm.CreateDumbBuffer(p.fd, size, 1, dumbBpp)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: alloc: %w", err)
	}

	buf := &Buffer{fd: p.fd, handle: handle, size: uint32(allocSize)}
	p.buffers = append(p.buffers, buf)

	log.Debug().Uint32("handle", handle).Uint64("size", allocSize).Msg("bufferpool: buffer allocated")
	return buf, nil
}

// Close frees every buffer the pool allocated, in allocation order,
// matching the original's alloc-then-free-in-order discipline. The
// first failure is reported, but every buffer is still attempted.
func (p *Pool) Close() error {
	var firstErr error
	for _, b := range p.buffers {
		if err := b.free(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.buffers = nil
	return firstErr
}
