package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"hintgraph/cas"
	"hintgraph/graph"
	"hintgraph/proto"
)

// Pack format (zstd-compressed as a whole):
// [4 bytes: header length (big-endian)]
// [header JSON: PackHeader]
// [body JSON: proto.GraphPayload]
//
// The header carries the BLAKE3 checksum of the body.

const (
	HeaderLengthSize = 4
	MaxHeaderSize    = 1 << 20
)

// PackHeader describes the graph in a pack.
type PackHeader struct {
	Version   int    `json:"version"`
	Exercise  string `json:"exercise"`
	CreatedAt int64  `json:"createdAt"`
	Vertices  int    `json:"vertices"`
	Edges     int    `json:"edges"`
	Checksum  string `json:"checksum"`
}

// WritePack writes g as a compressed pack.
func WritePack(w io.Writer, g *graph.Graph) error {
	p := g.Export()
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling graph: %w", err)
	}
	header, err := json.Marshal(PackHeader{
		Version:   p.Version,
		Exercise:  p.Exercise,
		CreatedAt: p.CreatedAt,
		Vertices:  len(p.Vertices),
		Edges:     len(p.Edges),
		Checksum:  cas.Blake3HashHex(body),
	})
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	var lenBuf [HeaderLengthSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
	for _, chunk := range [][]byte{lenBuf[:], header, body} {
		if _, err := enc.Write(chunk); err != nil {
			enc.Close()
			return fmt.Errorf("writing pack: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finishing pack: %w", err)
	}
	return nil
}

// ReadPackHeader decompresses a pack and returns its header and body.
func ReadPackHeader(r io.Reader) (*PackHeader, []byte, error) {
	decoder, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decompressing: %v", ErrCorrupt, err)
	}
	if len(data) < HeaderLengthSize {
		return nil, nil, fmt.Errorf("%w: pack too small: %d bytes", ErrCorrupt, len(data))
	}

	headerLen := binary.BigEndian.Uint32(data[:HeaderLengthSize])
	if headerLen > MaxHeaderSize {
		return nil, nil, fmt.Errorf("%w: header too large: %d bytes", ErrCorrupt, headerLen)
	}
	if int(HeaderLengthSize+headerLen) > len(data) {
		return nil, nil, fmt.Errorf("%w: header length exceeds pack size", ErrCorrupt)
	}

	var header PackHeader
	dec := json.NewDecoder(bytes.NewReader(data[HeaderLengthSize : HeaderLengthSize+headerLen]))
	if err := dec.Decode(&header); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing header: %v", ErrCorrupt, err)
	}
	return &header, data[HeaderLengthSize+headerLen:], nil
}

// ReadPack restores a graph from a pack, verifying its checksum.
func ReadPack(r io.Reader, logger *zap.Logger) (*graph.Graph, error) {
	header, body, err := ReadPackHeader(r)
	if err != nil {
		return nil, err
	}
	if header.Version != proto.SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported pack version %d", ErrCorrupt, header.Version)
	}
	if got := cas.Blake3HashHex(body); got != header.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var p proto.GraphPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: parsing body: %v", ErrCorrupt, err)
	}
	if len(p.Vertices) != header.Vertices || len(p.Edges) != header.Edges {
		return nil, fmt.Errorf("%w: header counts do not match body", ErrCorrupt)
	}
	return graph.Import(&p, logger)
}
