// Package client provides a Go convenience wrapper around the store
// engine's framed stdio protocol, for hosts that launch the engine as a
// co-process and talk to it over its stdin/stdout pipes.
package client

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/eshe-huli/keyring-store/internal/digest"
	"github.com/eshe-huli/keyring-store/internal/merkle"
	"github.com/eshe-huli/keyring-store/internal/protocol"
)

// Client drives one engine session over an arbitrary reader/writer pair.
// It is safe for concurrent use: requests are serialized internally since
// the wire protocol allows only one in-flight request per connection.
type Client struct {
	mu     sync.Mutex
	r      *bufio.Reader
	w      io.Writer
	nextID uint64
}

// New wraps r/w, typically the stdout/stdin pipes of a spawned engine
// process, as a Client.
func New(r io.Reader, w io.Writer) *Client {
	return &Client{r: bufio.NewReader(r), w: w}
}

// refID returns a correlation id: the next value of this client's counter,
// starting at 1. If the counter wraps around to zero, the id is taken from
// a freshly generated UUID instead. The wire protocol treats ref_id as
// opaque.
func (c *Client) refID() protocol.RefID {
	c.nextID++
	if c.nextID != 0 {
		return protocol.RefID(c.nextID)
	}
	id := uuid.New()
	return protocol.RefID(id.ID())
}

func (c *Client) call(req protocol.Request) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.refID()
	payload, err := protocol.EncodeRequest(id, req)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encoding %s request: %w", req.Tag, err)
	}
	if err := protocol.WriteFrame(c.w, payload); err != nil {
		return protocol.Response{}, fmt.Errorf("writing %s request: %w", req.Tag, err)
	}

	out, err := protocol.ReadFrame(c.r)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("reading %s response: %w", req.Tag, err)
	}
	if out == nil {
		return protocol.Response{}, fmt.Errorf("%s: engine closed the connection", req.Tag)
	}

	gotID, resp, err := protocol.DecodeResponse(out)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("decoding %s response: %w", req.Tag, err)
	}
	if gotID != id {
		return protocol.Response{}, fmt.Errorf("%s: ref_id mismatch: sent %d, got %d", req.Tag, id, gotID)
	}
	if resp.Tag == protocol.TagError {
		return protocol.Response{}, fmt.Errorf("%s: engine error: %s", req.Tag, resp.Message)
	}
	return resp, nil
}

// PutBlob stores data and returns its content digest.
func (c *Client) PutBlob(data []byte) (digest.Digest, error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagPutBlob, Data: data})
	if err != nil {
		return digest.Digest{}, err
	}
	h, ok := digest.FromBytes(resp.Hash)
	if !ok {
		return digest.Digest{}, fmt.Errorf("put_blob: malformed hash in response (%d bytes)", len(resp.Hash))
	}
	return h, nil
}

// GetBlob retrieves a blob by digest. found is false if the engine has no
// blob under that digest.
func (c *Client) GetBlob(h digest.Digest) (data []byte, found bool, err error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagGetBlob, Hash: h.Bytes()})
	if err != nil {
		return nil, false, err
	}
	if resp.Tag == protocol.TagNotFound {
		return nil, false, nil
	}
	return resp.Data, true, nil
}

// HasBlob reports whether a blob exists under digest h, without reading it.
func (c *Client) HasBlob(h digest.Digest) (bool, error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagHasBlob, Hash: h.Bytes()})
	if err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// PutDocument upserts a document's metadata and CRDT state.
func (c *Client) PutDocument(id string, meta, state []byte) error {
	_, err := c.call(protocol.Request{Tag: protocol.TagPutDocument, ID: id, Meta: meta, CRDTState: state})
	return err
}

// GetDocument retrieves a document's metadata and CRDT state. found is
// false if no document exists under id.
func (c *Client) GetDocument(id string) (meta, state []byte, found bool, err error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagGetDocument, ID: id})
	if err != nil {
		return nil, nil, false, err
	}
	if resp.Tag == protocol.TagNotFound {
		return nil, nil, false, nil
	}
	return resp.Meta, resp.CRDTState, true, nil
}

// DeleteDocument removes a document. Deleting a document that does not
// exist is not an error.
func (c *Client) DeleteDocument(id string) error {
	_, err := c.call(protocol.Request{Tag: protocol.TagDeleteDocument, ID: id})
	return err
}

// ListDocuments returns every stored document id, ascending.
func (c *Client) ListDocuments() ([]string, error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagListDocuments})
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Roots returns the current state digest of every stored document, or of
// docIDs only when non-empty.
func (c *Client) Roots(docIDs ...string) ([]merkle.Pair, error) {
	resp, err := c.call(protocol.Request{Tag: protocol.TagGetRoots, DocIDs: docIDs})
	if err != nil {
		return nil, err
	}
	pairs := make([]merkle.Pair, 0, len(resp.Roots))
	for _, root := range resp.Roots {
		h, ok := digest.FromBytes(root.Hash)
		if !ok {
			return nil, fmt.Errorf("get_roots: malformed hash for document %q", root.DocID)
		}
		pairs = append(pairs, merkle.Pair{DocID: root.DocID, Hash: h})
	}
	return pairs, nil
}

// MerkleRoot folds Roots() into a single combined digest, suitable for a
// cheap peer-to-peer comparison before running the full anti-entropy
// exchange.
func (c *Client) MerkleRoot() (digest.Digest, error) {
	pairs, err := c.Roots()
	if err != nil {
		return digest.Digest{}, err
	}
	return merkle.ComputeRoot(pairs), nil
}

// GetChanges returns the full CRDT state of every document whose digest is
// absent from known.
func (c *Client) GetChanges(known []digest.Digest) ([]protocol.Change, error) {
	hashes := make([][]byte, len(known))
	for i, h := range known {
		hashes[i] = h.Bytes()
	}
	resp, err := c.call(protocol.Request{Tag: protocol.TagGetChanges, KnownRoots: hashes})
	if err != nil {
		return nil, err
	}
	return resp.Changes, nil
}

// ApplyChanges upserts a batch of documents received from a peer.
func (c *Client) ApplyChanges(changes []protocol.Change) error {
	_, err := c.call(protocol.Request{Tag: protocol.TagApplyChanges, Changes: changes})
	return err
}

// Sync reconciles this client's document set against peer, a second
// Client (typically wrapping a connection to a remote engine or one
// fetched via some other transport the host layered on top of this
// package). It computes the Merkle diff locally from each side's Roots(),
// then exchanges only the documents each side actually lacks.
//
// Sync is the one place internal/merkle's DiffRoots is exercised end to
// end: the dispatcher itself never builds a tree, since a single engine
// has no notion of "the other side" to diff against.
func (c *Client) Sync(peer *Client) error {
	localRoots, err := c.Roots()
	if err != nil {
		return fmt.Errorf("sync: local roots: %w", err)
	}
	remoteRoots, err := peer.Roots()
	if err != nil {
		return fmt.Errorf("sync: remote roots: %w", err)
	}

	toSend, toRequest := merkle.DiffRoots(localRoots, remoteRoots)

	if len(toSend) > 0 {
		localKnown := make([]digest.Digest, 0, len(remoteRoots))
		for _, p := range remoteRoots {
			localKnown = append(localKnown, p.Hash)
		}
		changes, err := c.GetChanges(localKnown)
		if err != nil {
			return fmt.Errorf("sync: gathering local changes: %w", err)
		}
		if err := peer.ApplyChanges(filterChanges(changes, toSend)); err != nil {
			return fmt.Errorf("sync: applying local changes to peer: %w", err)
		}
	}

	if len(toRequest) > 0 {
		remoteKnown := make([]digest.Digest, 0, len(localRoots))
		for _, p := range localRoots {
			remoteKnown = append(remoteKnown, p.Hash)
		}
		changes, err := peer.GetChanges(remoteKnown)
		if err != nil {
			return fmt.Errorf("sync: gathering remote changes: %w", err)
		}
		if err := c.ApplyChanges(filterChanges(changes, toRequest)); err != nil {
			return fmt.Errorf("sync: applying remote changes locally: %w", err)
		}
	}

	return nil
}

func filterChanges(changes []protocol.Change, ids []string) []protocol.Change {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]protocol.Change, 0, len(ids))
	for _, c := range changes {
		if _, ok := want[c.DocID]; ok {
			out = append(out, c)
		}
	}
	return out
}
