// Package dispatch implements the engine's single session loop: it reads
// framed requests from the host, routes each by tag to the storage layer,
// and writes back the matching framed response. Requests are handled
// strictly serially — there is no worker pool here, since bbolt already
// serializes writes and the protocol itself is one request in flight at a
// time per the host/engine contract.
package dispatch

import (
	"fmt"
	"io"

	"github.com/eshe-huli/keyring-store/internal/digest"
	"github.com/eshe-huli/keyring-store/internal/log"
	"github.com/eshe-huli/keyring-store/internal/metrics"
	"github.com/eshe-huli/keyring-store/internal/protocol"
	"github.com/eshe-huli/keyring-store/internal/storage"
)

// Dispatcher owns the storage handle and drives the read-decode-route-
// encode-write loop over a single host connection (stdin/stdout).
type Dispatcher struct {
	store *storage.Store
}

// New creates a Dispatcher over store.
func New(store *storage.Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Run drives the session loop until r reaches a clean EOF at a frame
// boundary or a fatal framing/decode error occurs. It returns nil on a
// clean shutdown and a non-nil error otherwise; the caller (cmd/keyring-store)
// treats a non-nil error as the process's exit condition.
func (d *Dispatcher) Run(r io.Reader, w io.Writer) error {
	for {
		payload, err := protocol.ReadFrame(r)
		if err != nil {
			return fmt.Errorf("reading request frame: %w", err)
		}
		if payload == nil {
			return nil
		}

		refID, req, err := protocol.DecodeRequest(payload)
		if err != nil {
			return fmt.Errorf("decoding request: %w", err)
		}

		resp := d.handle(refID, req)

		out, err := protocol.EncodeResponse(refID, resp)
		if err != nil {
			return fmt.Errorf("encoding response for ref_id %d: %w", refID, err)
		}
		if err := protocol.WriteFrame(w, out); err != nil {
			return fmt.Errorf("writing response frame for ref_id %d: %w", refID, err)
		}
	}
}

// handle routes one decoded request to its storage operation, logging and
// recording metrics around the call. A storage failure never aborts the
// session: it becomes an Error response and the loop continues, since one
// bad request should not take down the whole host connection.
func (d *Dispatcher) handle(refID protocol.RefID, req protocol.Request) protocol.Response {
	logger := log.WithTag(log.WithRefID(log.WithComponent("dispatch"), refID), string(req.Tag))
	timer := metrics.NewTimer()

	resp, err := d.route(req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		logger.Error().Err(err).Msg("request failed")
		resp = protocol.ErrorResponse(err.Error())
	} else {
		logger.Debug().Msg("request handled")
	}

	metrics.RequestsTotal.WithLabelValues(string(req.Tag), outcome).Inc()
	timer.ObserveDurationVec(metrics.RequestDuration, string(req.Tag))

	return resp
}

func (d *Dispatcher) route(req protocol.Request) (protocol.Response, error) {
	switch req.Tag {
	case protocol.TagPutBlob:
		return d.putBlob(req)
	case protocol.TagGetBlob:
		return d.getBlob(req)
	case protocol.TagHasBlob:
		return d.hasBlob(req)
	case protocol.TagPutDocument:
		return d.putDocument(req)
	case protocol.TagGetDocument:
		return d.getDocument(req)
	case protocol.TagDeleteDocument:
		return d.deleteDocument(req)
	case protocol.TagListDocuments:
		return d.listDocuments(req)
	case protocol.TagGetRoots:
		return d.getRoots(req)
	case protocol.TagGetChanges:
		return d.getChanges(req)
	case protocol.TagApplyChanges:
		return d.applyChanges(req)
	default:
		return protocol.Response{}, fmt.Errorf("unknown request tag %q", req.Tag)
	}
}

func (d *Dispatcher) putBlob(req protocol.Request) (protocol.Response, error) {
	h, err := d.store.PutBlob(req.Data)
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{Tag: protocol.TagBlobStored, Hash: h.Bytes()}, nil
}

func (d *Dispatcher) getBlob(req protocol.Request) (protocol.Response, error) {
	h, ok := digest.FromBytes(req.Hash)
	if !ok {
		return protocol.Response{}, fmt.Errorf("get_blob: malformed hash (%d bytes)", len(req.Hash))
	}
	data, found, err := d.store.GetBlob(h)
	if err != nil {
		return protocol.Response{}, err
	}
	if !found {
		return protocol.NotFoundResponse(), nil
	}
	return protocol.Response{Tag: protocol.TagBlob, Data: data}, nil
}

func (d *Dispatcher) hasBlob(req protocol.Request) (protocol.Response, error) {
	h, ok := digest.FromBytes(req.Hash)
	if !ok {
		return protocol.Response{}, fmt.Errorf("has_blob: malformed hash (%d bytes)", len(req.Hash))
	}
	exists, err := d.store.HasBlob(h)
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{Tag: protocol.TagBlobExists, Exists: exists}, nil
}

func (d *Dispatcher) putDocument(req protocol.Request) (protocol.Response, error) {
	if req.ID == "" {
		return protocol.Response{}, fmt.Errorf("put_document: empty id")
	}
	if err := d.store.PutDocument(req.ID, req.Meta, req.CRDTState); err != nil {
		return protocol.Response{}, err
	}
	return protocol.OkResponse(), nil
}

func (d *Dispatcher) getDocument(req protocol.Request) (protocol.Response, error) {
	meta, state, found, err := d.store.GetDocument(req.ID)
	if err != nil {
		return protocol.Response{}, err
	}
	if !found {
		return protocol.NotFoundResponse(), nil
	}
	return protocol.Response{Tag: protocol.TagDocument, ID: req.ID, Meta: meta, CRDTState: state}, nil
}

func (d *Dispatcher) deleteDocument(req protocol.Request) (protocol.Response, error) {
	existed, err := d.store.DeleteDocument(req.ID)
	if err != nil {
		return protocol.Response{}, err
	}
	if !existed {
		return protocol.NotFoundResponse(), nil
	}
	return protocol.OkResponse(), nil
}

func (d *Dispatcher) listDocuments(req protocol.Request) (protocol.Response, error) {
	ids, err := d.store.ListDocuments()
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{Tag: protocol.TagDocumentList, IDs: ids}, nil
}

// getRoots reports the current state hash of every requested document, or
// of every stored document when req.DocIDs is empty. The host side folds
// these (doc_id, hash) pairs into a Merkle tree (internal/merkle) to get a
// single comparable root per peer.
func (d *Dispatcher) getRoots(req protocol.Request) (protocol.Response, error) {
	var pairs []storage.IDHash
	var err error
	if len(req.DocIDs) == 0 {
		pairs, err = d.store.AllDocHashes()
	} else {
		pairs, err = d.store.GetDocHashes(req.DocIDs)
	}
	if err != nil {
		return protocol.Response{}, err
	}

	timer := metrics.NewTimer()
	roots := make([]protocol.Root, 0, len(pairs))
	for _, p := range pairs {
		roots = append(roots, protocol.Root{DocID: p.ID, Hash: p.Hash.Bytes()})
	}
	timer.ObserveDuration(metrics.MerkleRootDuration)

	return protocol.Response{Tag: protocol.TagRoots, Roots: roots}, nil
}

// getChanges returns the CRDT state of every local document whose current
// hash is absent from req.KnownRoots: the peer already has every document
// whose hash it already advertised, so only the remainder needs shipping.
func (d *Dispatcher) getChanges(req protocol.Request) (protocol.Response, error) {
	known := make(map[digest.Digest]struct{}, len(req.KnownRoots))
	for _, h := range req.KnownRoots {
		if d, ok := digest.FromBytes(h); ok {
			known[d] = struct{}{}
		}
	}

	all, err := d.store.AllDocHashes()
	if err != nil {
		return protocol.Response{}, err
	}

	var changes []protocol.Change
	for _, idHash := range all {
		if _, have := known[idHash.Hash]; have {
			continue
		}
		_, state, found, err := d.store.GetDocument(idHash.ID)
		if err != nil {
			return protocol.Response{}, err
		}
		if !found {
			continue
		}
		changes = append(changes, protocol.Change{
			DocID: idHash.ID,
			Data:  state,
			Hash:  idHash.Hash.Bytes(),
		})
	}

	metrics.ChangesSentTotal.Add(float64(len(changes)))
	return protocol.Response{Tag: protocol.TagChanges, Changes: changes}, nil
}

// applyChanges upserts each incoming change, skipping any whose advertised
// hash already matches the local state hash. The advertised hash is
// advisory: it is never recomputed from Data before the comparison, so a
// peer that advertises the local hash with different Data has its change
// skipped. The stored state hash is always recomputed from Data (see
// DESIGN.md's Open Question resolution for why this mirrors the original
// engine's behavior rather than verifying the digest).
func (d *Dispatcher) applyChanges(req protocol.Request) (protocol.Response, error) {
	base := log.WithComponent("dispatch")

	for _, change := range req.Changes {
		docLogger := log.WithDocID(base, change.DocID)
		incomingHash, ok := digest.FromBytes(change.Hash)

		if ok {
			localHash, found, err := d.store.GetDocHash(change.DocID)
			if err != nil {
				return protocol.Response{}, err
			}
			if found && localHash == incomingHash {
				docLogger.Debug().Msg("change skipped, already up to date")
				metrics.ChangesAppliedTotal.WithLabelValues("skipped_up_to_date").Inc()
				continue
			}
		} else if len(change.Hash) > 0 {
			docLogger.Warn().Msg("change carried a malformed hash, applying unconditionally")
		}

		if err := d.store.PutDocument(change.DocID, nil, change.Data); err != nil {
			return protocol.Response{}, err
		}
		docLogger.Debug().Msg("change applied")
		metrics.ChangesAppliedTotal.WithLabelValues("stored").Inc()
	}
	return protocol.OkResponse(), nil
}
