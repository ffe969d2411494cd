package storage

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/eshe-huli/keyring-store/internal/digest"
)

var (
	bucketBlobs     = []byte("blobs")
	bucketDocuments = []byte("documents")
	bucketDocData   = []byte("doc_data")
	bucketDocHashes = []byte("doc_hashes")
)

// FileName is the database file the store maintains inside its data
// directory. The original Rust port names this keyring.redb after the redb
// engine it mounts; this port mounts bbolt instead, so the file is named
// keyring.db to match the engine actually in use.
const FileName = "keyring.db"

// Store is the transactional blob and document store. A Store owns its
// database handle for the lifetime of the process; it is safe for
// concurrent read access but the dispatcher that owns it issues requests
// strictly serially.
type Store struct {
	db *bolt.DB
}

// Open creates dir if missing and opens (or creates) the database file
// inside it, ensuring all four buckets exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, FileName)
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlobs, bucketDocuments, bucketDocData, bucketDocHashes} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutBlob stores data under its digest, idempotently overwriting any
// existing value (content-addressing guarantees the value is identical on
// re-insertion). It returns the digest.
func (s *Store) PutBlob(data []byte) (digest.Digest, error) {
	h := digest.Sum(data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		return b.Put(h[:], data)
	})
	if err != nil {
		return digest.Digest{}, fmt.Errorf("put blob: %w", err)
	}
	return h, nil
}

// GetBlob retrieves a blob by its digest. ok is false if no blob with that
// digest has been stored.
func (s *Store) GetBlob(h digest.Digest) (data []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		v := b.Get(h[:])
		if v == nil {
			return nil
		}
		ok = true
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get blob: %w", err)
	}
	return data, ok, nil
}

// HasBlob reports whether a blob with the given digest is stored.
func (s *Store) HasBlob(h digest.Digest) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		exists = b.Get(h[:]) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("has blob: %w", err)
	}
	return exists, nil
}

// PutDocument upserts a document: its metadata, its CRDT state, and the
// freshly computed digest of that state are written atomically in one
// write transaction across the documents, doc_data, and doc_hashes buckets.
func (s *Store) PutDocument(id string, meta, state []byte) error {
	stateHash := digest.Sum(state)

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketDocuments).Put([]byte(id), meta); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocData).Put([]byte(id), state); err != nil {
			return err
		}
		return tx.Bucket(bucketDocHashes).Put([]byte(id), stateHash[:])
	})
	if err != nil {
		return fmt.Errorf("put document %s: %w", id, err)
	}
	return nil
}

// GetDocument fetches a document's metadata and CRDT state. ok is false
// if id is not present; under the store's tri-consistency invariant this
// happens only when neither table has the id.
func (s *Store) GetDocument(id string) (meta, state []byte, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		m := tx.Bucket(bucketDocuments).Get([]byte(id))
		d := tx.Bucket(bucketDocData).Get([]byte(id))
		if m == nil || d == nil {
			return nil
		}
		ok = true
		meta = append([]byte(nil), m...)
		state = append([]byte(nil), d...)
		return nil
	})
	if err != nil {
		return nil, nil, false, fmt.Errorf("get document %s: %w", id, err)
	}
	return meta, state, ok, nil
}

// DeleteDocument removes id from all three document tables in one write
// transaction. It reports whether id was present beforehand; deleting an
// absent id is still a successful, idempotent commit.
func (s *Store) DeleteDocument(id string) (existed bool, err error) {
	key := []byte(id)
	err = s.db.Update(func(tx *bolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		existed = docs.Get(key) != nil
		if err := docs.Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocData).Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketDocHashes).Delete(key)
	})
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", id, err)
	}
	return existed, nil
}

// ListDocuments returns all document ids in ascending key order.
func (s *Store) ListDocuments() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDocuments).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

// GetDocHash returns the current state digest for id, if present.
func (s *Store) GetDocHash(id string) (h digest.Digest, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocHashes).Get([]byte(id))
		if v == nil {
			return nil
		}
		ok = true
		copy(h[:], v)
		return nil
	})
	if err != nil {
		return digest.Digest{}, false, fmt.Errorf("get doc hash %s: %w", id, err)
	}
	return h, ok, nil
}

// IDHash pairs a document id with its state digest.
type IDHash struct {
	ID   string
	Hash digest.Digest
}

// GetDocHashes looks up hashes for the given ids, omitting any id that is
// not present. The returned order matches the input order.
func (s *Store) GetDocHashes(ids []string) ([]IDHash, error) {
	var out []IDHash
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocHashes)
		for _, id := range ids {
			v := b.Get([]byte(id))
			if v == nil {
				continue
			}
			var h digest.Digest
			copy(h[:], v)
			out = append(out, IDHash{ID: id, Hash: h})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get doc hashes: %w", err)
	}
	return out, nil
}

// AllDocHashes returns every document's current state digest, in the hash
// table's key order.
func (s *Store) AllDocHashes() ([]IDHash, error) {
	var out []IDHash
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDocHashes).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var h digest.Digest
			copy(h[:], v)
			out = append(out, IDHash{ID: string(k), Hash: h})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("all doc hashes: %w", err)
	}
	return out, nil
}

// Counts returns the number of stored blobs and documents, used by the
// metrics collector's periodic gauge sampling.
func (s *Store) Counts() (blobs, documents int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		blobs = tx.Bucket(bucketBlobs).Stats().KeyN
		documents = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("counts: %w", err)
	}
	return blobs, documents, nil
}
