// Package merkle computes a combined root over a document set's state
// digests and diffs two peers' digest sets for anti-entropy sync.
package merkle

import (
	"sort"

	"github.com/eshe-huli/keyring-store/internal/digest"
)

// Pair associates a document id with its current state digest.
type Pair struct {
	DocID string
	Hash  digest.Digest
}

// ComputeRoot returns the combined Merkle root over pairs.
//
// An empty input yields digest.Zero, the designated identity root. Otherwise
// pairs are sorted ascending by DocID (ids are globally unique, so ties never
// occur), the ids are dropped, and the remaining digest layer is folded
// pairwise — digest(a ++ b) — until one digest remains. An odd trailing
// element is promoted unchanged to the next layer rather than duplicated,
// which would otherwise admit a second-preimage ambiguity with a shorter
// tree. Because the sort key is the id, peers holding equal content produce
// equal roots regardless of insertion order.
func ComputeRoot(pairs []Pair) digest.Digest {
	if len(pairs) == 0 {
		return digest.Zero
	}

	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DocID < sorted[j].DocID })

	layer := make([]digest.Digest, len(sorted))
	for i, p := range sorted {
		layer[i] = p.Hash
	}

	for len(layer) > 1 {
		next := make([]digest.Digest, 0, (len(layer)+1)/2)
		i := 0
		for i+1 < len(layer) {
			buf := make([]byte, 0, 2*digest.Size)
			buf = append(buf, layer[i][:]...)
			buf = append(buf, layer[i+1][:]...)
			next = append(next, digest.Sum(buf))
			i += 2
		}
		if i < len(layer) {
			next = append(next, layer[i])
		}
		layer = next
	}

	return layer[0]
}

// DiffRoots compares local and remote digest sets and returns the document
// ids each side needs to transfer to the other.
//
// For every id present in the union of both sets:
//   - present in both with equal digests: ignored.
//   - present in both with differing digests: a conflict, placed in both
//     toSend and toRequest (each side has a version the other lacks).
//   - present only locally: toSend.
//   - present only remotely: toRequest.
//
// Both returned slices are sorted ascending by id so the result is canonical.
func DiffRoots(local, remote []Pair) (toSend, toRequest []string) {
	localMap := make(map[string]digest.Digest, len(local))
	for _, p := range local {
		localMap[p.DocID] = p.Hash
	}
	remoteMap := make(map[string]digest.Digest, len(remote))
	for _, p := range remote {
		remoteMap[p.DocID] = p.Hash
	}

	seen := make(map[string]struct{}, len(localMap)+len(remoteMap))
	for id := range localMap {
		seen[id] = struct{}{}
	}
	for id := range remoteMap {
		seen[id] = struct{}{}
	}

	for id := range seen {
		lh, lok := localMap[id]
		rh, rok := remoteMap[id]
		switch {
		case lok && rok && lh == rh:
			// identical, nothing to do
		case lok && rok:
			toSend = append(toSend, id)
			toRequest = append(toRequest, id)
		case lok:
			toSend = append(toSend, id)
		case rok:
			toRequest = append(toRequest, id)
		}
	}

	sort.Strings(toSend)
	sort.Strings(toRequest)
	return toSend, toRequest
}
