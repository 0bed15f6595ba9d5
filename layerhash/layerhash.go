// Package layerhash computes the two digests the merge engine needs for
// every layer file: the verbatim (compressed) sha256, and the sha256 of the
// decompressed byte stream.
package layerhash

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// chunkSize bounds memory use for both hashing passes.
const chunkSize = 64 * 1024

var errDecode = errors.New("malformed compressed layer data")

// DigestCompressed hashes path's bytes verbatim -- the build emits
// .tar.gz/.tar.zst files whose bytes are hashed without decoding.
func DigestCompressed(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "opening layer %s", path)
	}
	defer f.Close()

	h := sha256.New()
	n, err := copyChunked(h, f)
	if err != nil {
		return "", 0, errors.Wrapf(err, "hashing compressed layer %s", path)
	}
	return digestFromSum(h), n, nil
}

// DigestUncompressed streams path through a decompressor (gzip or zstd,
// picked by content sniff) and hashes the decoded byte stream; the returned
// size is the decoded length.
func DigestUncompressed(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "opening layer %s", path)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	dec, err := newDecompressor(br)
	if err != nil {
		return "", 0, errors.Wrapf(errDecode, "layer %s: %v", path, err)
	}
	defer dec.Close()

	h := sha256.New()
	n, err := copyChunked(h, dec)
	if err != nil {
		return "", 0, errors.Wrapf(errDecode, "layer %s: %v", path, err)
	}
	return digestFromSum(h), n, nil
}

func digestFromSum(h interface{ Sum([]byte) []byte }) digest.Digest {
	sum := h.Sum(nil)
	return digest.NewDigestFromHex("sha256", hex.EncodeToString(sum))
}

func copyChunked(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	return io.CopyBuffer(dst, src, buf)
}

type readCloser struct {
	io.Reader
	closeFn func() error
}

func (r readCloser) Close() error {
	if r.closeFn == nil {
		return nil
	}
	return r.closeFn()
}

// newDecompressor sniffs the magic bytes of r and returns a decoded stream.
// gzip magic is 0x1f 0x8b; zstd magic is 0x28 0xb5 0x2f 0xfd.
func newDecompressor(r *bufio.Reader) (io.ReadCloser, error) {
	magic, err := r.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}
	switch {
	case len(magic) >= 2 && magic[0] == 0x1f && magic[1] == 0x8b:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case len(magic) == 4 && magic[0] == 0x28 && magic[1] == 0xb5 && magic[2] == 0x2f && magic[3] == 0xfd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return readCloser{Reader: zr, closeFn: func() error { zr.Close(); return nil }}, nil
	default:
		return nil, errors.New("unrecognized compression magic bytes")
	}
}
