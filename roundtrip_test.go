package inflate_test

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/JoshVarga/inflate"
)

// deflateStream compresses data at the given level and finishes the
// stream with its Adler-32 trailer, producing the format Inflate
// consumes.
func deflateStream(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], adler32.Checksum(data))
	return append(buf.Bytes(), trailer[:]...)
}

func testPayloads() map[string][]byte {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 50000)
	rng.Read(random)
	return map[string][]byte{
		"empty": {},
		"hello": []byte("Hello"),
		"run":   bytes.Repeat([]byte("a"), 10000),
		// long enough to wrap the window several times
		"text":   []byte(strings.Repeat("the quick brown fox jumps over the lazy dog. ", 2500)),
		"random": random,
	}
}

func TestRoundTrip(t *testing.T) {
	levels := map[string]int{
		"stored":  flate.NoCompression,
		"huffman": flate.HuffmanOnly,
		"fastest": flate.BestSpeed,
		"default": flate.DefaultCompression,
		"best":    flate.BestCompression,
	}
	for payloadName, payload := range testPayloads() {
		for levelName, level := range levels {
			t.Run(payloadName+"/"+levelName, func(t *testing.T) {
				stream := deflateStream(t, payload, level)
				out, err := inflate.Inflate(stream, nil, inflate.WindowSize32768)
				require.NoError(t, err)
				require.Equal(t, payload, out)
			})
		}
	}
}

func TestRoundTripZlibStream(t *testing.T) {
	data := []byte(strings.Repeat("zlib wraps a deflate stream. ", 400))
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// drop the two-byte zlib header; the trailer already is the
	// big-endian Adler-32 the decoder expects
	out, err := inflate.Inflate(buf.Bytes()[2:], nil, inflate.WindowSize32768)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestRoundTripPresetDictionary(t *testing.T) {
	dict := []byte("the quick brown fox jumps over the lazy dog")
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog, again. ", 50))
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevelDict(&buf, zlib.BestCompression, dict)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// with FDICT set the wrapper is the two header bytes plus the
	// four-byte dictionary id
	stream := buf.Bytes()[6:]
	out, err := inflate.Inflate(stream, dict, inflate.WindowSize32768)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestRoundTripAllWindowSizes(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	// stored blocks reference no history, so every window size accepts them
	stream := deflateStream(t, data, flate.NoCompression)
	for _, size := range []int{
		inflate.WindowSize256, inflate.WindowSize512, inflate.WindowSize1024,
		inflate.WindowSize2048, inflate.WindowSize4096, inflate.WindowSize8192,
		inflate.WindowSize16384, inflate.WindowSize32768,
	} {
		out, err := inflate.Inflate(stream, nil, size)
		require.NoError(t, err, "window %d", size)
		require.Equal(t, data, out)
	}
}

func TestNewReaderDictRoundTrip(t *testing.T) {
	dict := []byte("a shared dictionary of common phrases")
	data := []byte("a shared dictionary of common phrases makes short messages shorter")
	var buf bytes.Buffer
	w, err := flate.NewWriterDict(&buf, flate.BestCompression, dict)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], adler32.Checksum(data))
	stream := append(buf.Bytes(), trailer[:]...)

	r, err := inflate.NewReaderDict(bytes.NewReader(stream), dict)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, out)
}
