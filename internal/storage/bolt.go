package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var (
	objectsBucket = []byte("objects")
	typesBucket   = []byte("content_types")
)

// BoltBucket keeps objects inside a single bolt file, for single-node deployments.
type BoltBucket struct {
	*Signer
	db *bolt.DB
}

func OpenBoltBucket(path string, signer *Signer) (*BoltBucket, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt bucket: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(objectsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(typesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt bucket: %w", err)
	}

	return &BoltBucket{Signer: signer, db: db}, nil
}

func (b *BoltBucket) Close() error {
	return b.db.Close()
}

func (b *BoltBucket) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(objectsBucket).Put([]byte(clean), data); err != nil {
			return err
		}
		return tx.Bucket(typesBucket).Put([]byte(clean), []byte(contentType))
	})
}

func (b *BoltBucket) Get(ctx context.Context, objectPath string) (*Object, error) {
	clean, err := CleanPath(objectPath)
	if err != nil {
		return nil, err
	}

	var obj *Object
	err = b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(objectsBucket).Get([]byte(clean))
		if data == nil {
			return ErrObjectNotFound
		}
		// bolt values are only valid inside the transaction.
		obj = &Object{
			Data:        append([]byte(nil), data...),
			ContentType: string(tx.Bucket(typesBucket).Get([]byte(clean))),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *BoltBucket) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(objectsBucket) == nil {
			return fmt.Errorf("bolt bucket missing %s", objectsBucket)
		}
		return nil
	})
}
