/*
Package storage provides bbolt-backed persistence for the keyring-store's blob
and document tables.

Four buckets live in a single database file:

	blobs       32-byte digest -> opaque bytes
	documents   document id    -> opaque meta bytes
	doc_data    document id    -> opaque CRDT state bytes
	doc_hashes  document id    -> 32-byte digest of the CRDT state

# Transaction model

Reads use db.View (concurrent, MVCC snapshot); writes use db.Update
(serialized, atomic commit). A document write touches documents, doc_data,
and doc_hashes inside one write transaction so a reader never observes the
three tables disagreeing about which ids exist or which hash belongs to an
id — this is the tri-consistency invariant the whole store exists to uphold.

# Usage

	store, err := storage.Open("./data")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	hash, err := store.PutBlob([]byte("hello"))
	data, ok, err := store.GetBlob(hash)

	err = store.PutDocument("doc1", []byte("meta"), []byte("crdt-state"))
	meta, state, ok, err := store.GetDocument("doc1")
*/
package storage
