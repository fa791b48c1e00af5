// Package merkle builds domain-separated SHA3-256 Merkle trees over session
// digests, so many independent audit logs can be committed to one root.
package merkle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"
)

const (
	leafTag = "qfs:session:leaf:v1"
	nodeTag = "qfs:session:node:v1"
)

var ErrUnknownLeaf = errors.New("leaf not in tree")

type Leaf struct {
	Path     string
	Digest   string
	LeafHash string
}

type Tree struct {
	Leaves []Leaf
	Root   string
	Nodes  [][]string // levels of node hashes, leaves first, root last
}

// BuildTree commits to a set of path -> hex digest pairs. Leaves are ordered
// by path, so the root does not depend on map iteration or arrival order.
// An empty set has an empty root.
func BuildTree(digests map[string]string) (*Tree, error) {
	paths := make([]string, 0, len(digests))
	for k := range digests {
		paths = append(paths, k)
	}
	sort.Strings(paths)

	leaves := make([]Leaf, len(paths))
	for i, path := range paths {
		raw, err := hex.DecodeString(digests[path])
		if err != nil {
			return nil, fmt.Errorf("merkle: digest for %q is not hex: %w", path, err)
		}
		leaves[i] = Leaf{
			Path:     path,
			Digest:   digests[path],
			LeafHash: sha3Hex(buildLeafBytes(path, raw)),
		}
	}

	if len(leaves) == 0 {
		return &Tree{Root: ""}, nil
	}

	tree := &Tree{Leaves: leaves}
	level := make([]string, len(leaves))
	for i, l := range leaves {
		level[i] = l.LeafHash
	}
	for len(level) > 1 {
		tree.Nodes = append(tree.Nodes, level)
		level = buildNextLevel(level)
	}
	tree.Root = level[0]
	tree.Nodes = append(tree.Nodes, level)
	return tree, nil
}

func buildLeafBytes(path string, digest []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(leafTag)
	buf.WriteByte(0)
	buf.WriteString(path)
	buf.WriteByte(0)
	buf.Write(digest)
	return buf.Bytes()
}

func buildNextLevel(hashes []string) []string {
	count := len(hashes)
	if count%2 != 0 {
		// Duplicate the last node; copy first so the stored level keeps its length.
		padded := make([]string, count+1)
		copy(padded, hashes)
		padded[count] = hashes[count-1]
		hashes = padded
		count++
	}
	next := make([]string, count/2)
	for i := 0; i < count; i += 2 {
		next[i/2] = nodeHash(hashes[i], hashes[i+1])
	}
	return next
}

func nodeHash(left, right string) string {
	var buf bytes.Buffer
	buf.WriteString(nodeTag)
	buf.WriteByte(0)
	buf.Write(hexToBytes(left))
	buf.Write(hexToBytes(right))
	return sha3Hex(buf.Bytes())
}

func sha3Hex(data []byte) string {
	h := sha3.Sum256(data)
	return hex.EncodeToString(h[:])
}

func hexToBytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}
