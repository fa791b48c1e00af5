package merkle

import "fmt"

type InclusionProof struct {
	LeafPath   string      `json:"leaf_path"`
	LeafHash   string      `json:"leaf_hash"`
	MerkleRoot string      `json:"merkle_root"`
	ProofPath  []ProofStep `json:"proof_path"`
}

type ProofStep struct {
	Side        string `json:"side"` // "L" or "R": which side the sibling is on
	SiblingHash string `json:"sibling_hash"`
}

// Proof returns the inclusion proof for the leaf at path.
func (t *Tree) Proof(path string) (InclusionProof, error) {
	idx := -1
	for i, l := range t.Leaves {
		if l.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return InclusionProof{}, fmt.Errorf("%w: %q", ErrUnknownLeaf, path)
	}

	proof := InclusionProof{
		LeafPath:   path,
		LeafHash:   t.Leaves[idx].LeafHash,
		MerkleRoot: t.Root,
	}
	for _, level := range t.Nodes[:len(t.Nodes)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx // odd tail pairs with itself
		}
		side := "R"
		if sibling < idx {
			side = "L"
		}
		proof.ProofPath = append(proof.ProofPath, ProofStep{Side: side, SiblingHash: level[sibling]})
		idx /= 2
	}
	return proof, nil
}

// VerifyInclusionProof checks proof against a trusted root. An empty
// expectedRoot trusts the root embedded in the proof.
func VerifyInclusionProof(proof InclusionProof, expectedRoot string) bool {
	if expectedRoot != "" && proof.MerkleRoot != expectedRoot {
		return false
	}
	current := proof.LeafHash
	for _, step := range proof.ProofPath {
		if step.Side == "L" {
			current = nodeHash(step.SiblingHash, current)
		} else {
			current = nodeHash(current, step.SiblingHash)
		}
	}
	return current == proof.MerkleRoot
}

// LeafHashFor recomputes the leaf hash a path/digest pair commits to.
func LeafHashFor(path, digest string) string {
	return sha3Hex(buildLeafBytes(path, hexToBytes(digest)))
}
