package dispatch

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshe-huli/keyring-store/internal/digest"
	"github.com/eshe-huli/keyring-store/internal/protocol"
	"github.com/eshe-huli/keyring-store/internal/storage"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestPutGetHasBlob(t *testing.T) {
	d := newTestDispatcher(t)

	putResp, err := d.route(protocol.Request{Tag: protocol.TagPutBlob, Data: []byte("hello")})
	require.NoError(t, err)
	require.Equal(t, protocol.TagBlobStored, putResp.Tag)

	getResp, err := d.route(protocol.Request{Tag: protocol.TagGetBlob, Hash: putResp.Hash})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagBlob, getResp.Tag)
	assert.Equal(t, []byte("hello"), getResp.Data)

	hasResp, err := d.route(protocol.Request{Tag: protocol.TagHasBlob, Hash: putResp.Hash})
	require.NoError(t, err)
	assert.True(t, hasResp.Exists)
}

func TestGetBlobNotFound(t *testing.T) {
	d := newTestDispatcher(t)
	resp, err := d.route(protocol.Request{Tag: protocol.TagGetBlob, Hash: digest.Zero.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagNotFound, resp.Tag)
}

func TestGetBlobMalformedHash(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagGetBlob, Hash: []byte{1, 2, 3}})
	assert.Error(t, err)
}

func TestPutGetDeleteDocument(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.route(protocol.Request{
		Tag: protocol.TagPutDocument, ID: "doc1",
		Meta: []byte("m"), CRDTState: []byte("s1"),
	})
	require.NoError(t, err)

	getResp, err := d.route(protocol.Request{Tag: protocol.TagGetDocument, ID: "doc1"})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagDocument, getResp.Tag)
	assert.Equal(t, []byte("m"), getResp.Meta)
	assert.Equal(t, []byte("s1"), getResp.CRDTState)

	delResp, err := d.route(protocol.Request{Tag: protocol.TagDeleteDocument, ID: "doc1"})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagOk, delResp.Tag)

	delResp2, err := d.route(protocol.Request{Tag: protocol.TagDeleteDocument, ID: "doc1"})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagNotFound, delResp2.Tag)

	missing, err := d.route(protocol.Request{Tag: protocol.TagGetDocument, ID: "doc1"})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagNotFound, missing.Tag)
}

func TestListDocuments(t *testing.T) {
	d := newTestDispatcher(t)
	for _, id := range []string{"b", "a", "c"} {
		_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: id, CRDTState: []byte(id)})
		require.NoError(t, err)
	}

	resp, err := d.route(protocol.Request{Tag: protocol.TagListDocuments})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, resp.IDs)
}

func TestGetRootsAllAndFiltered(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "a", CRDTState: []byte("1")})
	require.NoError(t, err)
	_, err = d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "b", CRDTState: []byte("2")})
	require.NoError(t, err)

	all, err := d.route(protocol.Request{Tag: protocol.TagGetRoots})
	require.NoError(t, err)
	assert.Len(t, all.Roots, 2)

	filtered, err := d.route(protocol.Request{Tag: protocol.TagGetRoots, DocIDs: []string{"a", "missing"}})
	require.NoError(t, err)
	require.Len(t, filtered.Roots, 1)
	assert.Equal(t, "a", filtered.Roots[0].DocID)
	assert.Equal(t, digest.Sum([]byte("1")).Bytes(), filtered.Roots[0].Hash)
}

func TestGetChangesExcludesKnownHashes(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "a", CRDTState: []byte("1")})
	require.NoError(t, err)
	_, err = d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "b", CRDTState: []byte("2")})
	require.NoError(t, err)

	known := digest.Sum([]byte("1")).Bytes()
	resp, err := d.route(protocol.Request{Tag: protocol.TagGetChanges, KnownRoots: [][]byte{known}})
	require.NoError(t, err)
	require.Len(t, resp.Changes, 1)
	assert.Equal(t, "b", resp.Changes[0].DocID)
	assert.Equal(t, []byte("2"), resp.Changes[0].Data)
}

func TestGetChangesAllWhenNoKnownRoots(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "a", CRDTState: []byte("1")})
	require.NoError(t, err)

	resp, err := d.route(protocol.Request{Tag: protocol.TagGetChanges})
	require.NoError(t, err)
	assert.Len(t, resp.Changes, 1)
}

func TestApplyChangesStoresNewDocument(t *testing.T) {
	d := newTestDispatcher(t)

	resp, err := d.route(protocol.Request{
		Tag: protocol.TagApplyChanges,
		Changes: []protocol.Change{
			{DocID: "a", Data: []byte("v1"), Hash: digest.Sum([]byte("v1")).Bytes()},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.TagOk, resp.Tag)

	getResp, err := d.route(protocol.Request{Tag: protocol.TagGetDocument, ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), getResp.CRDTState)
}

func TestApplyChangesSkipsWhenHashMatchesLocal(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "a", Meta: []byte("kept"), CRDTState: []byte("v1")})
	require.NoError(t, err)

	_, err = d.route(protocol.Request{
		Tag: protocol.TagApplyChanges,
		Changes: []protocol.Change{
			{DocID: "a", Data: []byte("should-not-apply"), Hash: digest.Sum([]byte("v1")).Bytes()},
		},
	})
	require.NoError(t, err)

	getResp, err := d.route(protocol.Request{Tag: protocol.TagGetDocument, ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), getResp.CRDTState)
	assert.Equal(t, []byte("kept"), getResp.Meta)
}

func TestApplyChangesOverwritesWhenHashDiffers(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.TagPutDocument, ID: "a", Meta: []byte("old-meta"), CRDTState: []byte("v1")})
	require.NoError(t, err)

	_, err = d.route(protocol.Request{
		Tag: protocol.TagApplyChanges,
		Changes: []protocol.Change{
			{DocID: "a", Data: []byte("v2"), Hash: digest.Sum([]byte("v2")).Bytes()},
		},
	})
	require.NoError(t, err)

	getResp, err := d.route(protocol.Request{Tag: protocol.TagGetDocument, ID: "a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), getResp.CRDTState)
	// Meta is reset to empty on sync-driven apply: sync carries no metadata.
	assert.Empty(t, getResp.Meta)
}

func TestUnknownTagReturnsError(t *testing.T) {
	d := newTestDispatcher(t)
	_, err := d.route(protocol.Request{Tag: protocol.Tag("bogus")})
	assert.Error(t, err)
}

func TestRunEndToEndOverFramedStream(t *testing.T) {
	d := newTestDispatcher(t)

	var requests bytes.Buffer
	payload1, err := protocol.EncodeRequest(1, protocol.Request{Tag: protocol.TagPutBlob, Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(&requests, payload1))

	payload2, err := protocol.EncodeRequest(2, protocol.Request{Tag: protocol.TagListDocuments})
	require.NoError(t, err)
	require.NoError(t, protocol.WriteFrame(&requests, payload2))

	var responses bytes.Buffer
	require.NoError(t, d.Run(&requests, &responses))

	refID1, resp1, err := protocol.DecodeResponse(mustReadFrame(t, &responses))
	require.NoError(t, err)
	assert.Equal(t, protocol.RefID(1), refID1)
	assert.Equal(t, protocol.TagBlobStored, resp1.Tag)

	refID2, resp2, err := protocol.DecodeResponse(mustReadFrame(t, &responses))
	require.NoError(t, err)
	assert.Equal(t, protocol.RefID(2), refID2)
	assert.Equal(t, protocol.TagDocumentList, resp2.Tag)
}

func TestRunFatalOnFrameDecodeError(t *testing.T) {
	d := newTestDispatcher(t)

	var requests bytes.Buffer
	require.NoError(t, protocol.WriteFrame(&requests, []byte("not msgpack")))

	var responses bytes.Buffer
	err := d.Run(&requests, &responses)
	assert.Error(t, err)
}

func mustReadFrame(t *testing.T, r *bytes.Buffer) []byte {
	t.Helper()
	payload, err := protocol.ReadFrame(r)
	require.NoError(t, err)
	require.NotNil(t, payload)
	return payload
}
