package storage

import (
	"fmt"
	"path/filepath"
)

const (
	DriverDisk = "disk"
	DriverBolt = "bolt"
)

type Options struct {
	Driver        string
	Root          string
	BoltPath      string
	PublicBaseURL string
	SigningKey    string
}

// Open builds the configured bucket. The returned close func is never nil.
func Open(opts Options) (Bucket, *Signer, func() error, error) {
	signer := NewSigner(opts.PublicBaseURL, opts.SigningKey)
	noop := func() error { return nil }

	switch opts.Driver {
	case "", DriverDisk:
		root := opts.Root
		if root == "" {
			root = "./uploads"
		}
		b, err := NewDiskBucket(root, signer)
		if err != nil {
			return nil, nil, noop, err
		}
		return b, signer, noop, nil
	case DriverBolt:
		path := opts.BoltPath
		if path == "" {
			path = filepath.Join(opts.Root, "objects.db")
		}
		b, err := OpenBoltBucket(path, signer)
		if err != nil {
			return nil, nil, noop, err
		}
		return b, signer, b.Close, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
