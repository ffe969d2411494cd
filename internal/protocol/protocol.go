// Package protocol defines the wire types exchanged between the engine and
// its host over stdin/stdout: a closed request/response catalogue, carried
// inside length-prefixed, msgpack-encoded frames (see frame.go, codec.go).
package protocol

// RefID is the per-request correlation id chosen by the peer issuing a
// request and echoed unchanged in the matching response. The engine never
// interprets, compares, or persists it.
type RefID = uint64

// Tag discriminates the closed set of request and response variants. Tags
// are part of the wire contract: adding one is additive (append only),
// removing or renumbering one is a breaking change.
type Tag string

const (
	// Request tags.
	TagPutBlob        Tag = "put_blob"
	TagGetBlob        Tag = "get_blob"
	TagHasBlob        Tag = "has_blob"
	TagPutDocument    Tag = "put_document"
	TagGetDocument    Tag = "get_document"
	TagDeleteDocument Tag = "delete_document"
	TagListDocuments  Tag = "list_documents"
	TagGetRoots       Tag = "get_roots"
	TagGetChanges     Tag = "get_changes"
	TagApplyChanges   Tag = "apply_changes"

	// Response tags.
	TagOk           Tag = "ok"
	TagBlob         Tag = "blob"
	TagBlobStored   Tag = "blob_stored"
	TagBlobExists   Tag = "blob_exists"
	TagDocument     Tag = "document"
	TagDocumentList Tag = "document_list"
	TagNotFound     Tag = "not_found"
	TagRoots        Tag = "roots"
	TagChanges      Tag = "changes"
	TagSyncDiff     Tag = "sync_diff"
	TagError        Tag = "error"
)

// Root pairs a document id with its current CRDT-state digest.
type Root struct {
	DocID string `msgpack:"doc_id"`
	Hash  []byte `msgpack:"hash"`
}

// Change conveys one document's CRDT payload and its advertised digest
// during sync transfer. Hash is advisory: the dispatcher does not verify it
// against Data before storing (see DESIGN.md's Open Question resolution).
type Change struct {
	DocID string `msgpack:"doc_id"`
	Data  []byte `msgpack:"data"`
	Hash  []byte `msgpack:"hash"`
}

// Request is the tagged union of every inbound message the engine accepts.
// Only the fields relevant to Tag are populated; this mirrors the closed
// Rust enum in the original port (see internal/protocol/codec.go for how
// the tagged union is actually put on the wire).
type Request struct {
	Tag Tag `msgpack:"tag"`

	// PutBlob
	Data []byte `msgpack:"data,omitempty"`

	// GetBlob, HasBlob
	Hash []byte `msgpack:"hash,omitempty"`

	// PutDocument, GetDocument, DeleteDocument
	ID   string `msgpack:"id,omitempty"`
	Meta []byte `msgpack:"meta,omitempty"`
	// CRDTState is reused by PutDocument ("crdt_state" field in the
	// original wire contract).
	CRDTState []byte `msgpack:"crdt_state,omitempty"`

	// GetRoots
	DocIDs []string `msgpack:"doc_ids,omitempty"`

	// GetChanges
	KnownRoots [][]byte `msgpack:"known_roots,omitempty"`

	// ApplyChanges
	Changes []Change `msgpack:"changes,omitempty"`
}

// Response is the tagged union of every outbound message the engine emits.
type Response struct {
	Tag Tag `msgpack:"tag"`

	// Blob
	Data []byte `msgpack:"data,omitempty"`

	// BlobStored
	Hash []byte `msgpack:"hash,omitempty"`

	// BlobExists
	Exists bool `msgpack:"exists,omitempty"`

	// Document
	ID        string `msgpack:"id,omitempty"`
	Meta      []byte `msgpack:"meta,omitempty"`
	CRDTState []byte `msgpack:"crdt_state,omitempty"`

	// DocumentList
	IDs []string `msgpack:"ids,omitempty"`

	// Roots
	Roots []Root `msgpack:"roots,omitempty"`

	// Changes
	Changes []Change `msgpack:"changes,omitempty"`

	// SyncDiff (reserved; never produced by any request defined here, but
	// must remain encodable per the wire contract)
	ToSend    [][]byte `msgpack:"to_send,omitempty"`
	ToRequest [][]byte `msgpack:"to_request,omitempty"`

	// Error
	Message string `msgpack:"message,omitempty"`
}

// OkResponse builds a bare Ok response.
func OkResponse() Response { return Response{Tag: TagOk} }

// NotFoundResponse builds a bare NotFound response.
func NotFoundResponse() Response { return Response{Tag: TagNotFound} }

// ErrorResponse builds an Error response carrying a human-readable message.
func ErrorResponse(message string) Response {
	return Response{Tag: TagError, Message: message}
}
