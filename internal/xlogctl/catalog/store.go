package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

var ErrCatalogNotFound = errors.New("catalog not found")

var (
	bucketDatabases  = []byte("databases")
	bucketByFilenode = []byte("relations_by_filenode")
	bucketByOID      = []byte("relations_by_oid")
	bucketMeta       = []byte("meta")

	keyImportedAt = []byte("imported_at")
)

// Store keeps a catalog snapshot in a bbolt file so it can be imported once
// and reused by every command.
type Store struct {
	db   *bbolt.DB
	path string
}

// OpenStore opens the catalog at path. A read-only open of a missing file
// returns ErrCatalogNotFound.
func OpenStore(path string, readOnly bool) (*Store, error) {
	if readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: readOnly, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Import replaces the stored catalog with snap in a single transaction.
func (s *Store) Import(snap *Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDatabases, bucketByFilenode, bucketByOID, bucketMeta} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return err
				}
			}
		}

		dbs, err := tx.CreateBucket(bucketDatabases)
		if err != nil {
			return err
		}
		byFilenode, err := tx.CreateBucket(bucketByFilenode)
		if err != nil {
			return err
		}
		byOID, err := tx.CreateBucket(bucketByOID)
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}

		for _, d := range snap.Databases {
			if err := dbs.Put(oidKey(d.OID), []byte(d.Name)); err != nil {
				return err
			}
		}
		for _, r := range snap.Relations {
			if err := byFilenode.Put(oidKey(r.RelFileNode), []byte(r.Name)); err != nil {
				return err
			}
			if err := byOID.Put(oidKey(r.OID), []byte(r.Name)); err != nil {
				return err
			}
		}

		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(time.Now().UnixNano()))
		return meta.Put(keyImportedAt, ts)
	})
}

// Names loads the stored catalog. An empty store yields an empty resolver.
func (s *Store) Names() (*Names, error) {
	n := &Names{
		databases:  make(map[uint32]string),
		byFilenode: make(map[uint32]string),
		byOID:      make(map[uint32]string),
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := loadBucket(tx, bucketDatabases, n.databases); err != nil {
			return err
		}
		if err := loadBucket(tx, bucketByFilenode, n.byFilenode); err != nil {
			return err
		}
		return loadBucket(tx, bucketByOID, n.byOID)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ImportedAt returns the time of the last Import, zero if none.
func (s *Store) ImportedAt() (time.Time, error) {
	var at time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		if v := b.Get(keyImportedAt); len(v) == 8 {
			at = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
		}
		return nil
	})
	return at, err
}

func loadBucket(tx *bbolt.Tx, name []byte, into map[uint32]string) error {
	b := tx.Bucket(name)
	if b == nil {
		return nil
	}
	return b.ForEach(func(k, v []byte) error {
		if len(k) != 4 {
			return fmt.Errorf("corrupt key in bucket %s", name)
		}
		into[binary.BigEndian.Uint32(k)] = string(v)
		return nil
	})
}

// big endian keeps the bucket ordered by oid.
func oidKey(oid uint32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, oid)
	return k
}
