package couchbase

import (
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// ConnectOptions describes how to reach a bucket.
type ConnectOptions struct {
	ConnectionString string
	Username         string
	Password         string
	Bucket           string
	ConnectTimeout   time.Duration
	KVTimeout        time.Duration
}

// Connect opens the cluster and waits until the bucket is ready to serve
// requests. The cluster is closed again if the bucket never becomes ready.
func Connect(opts ConnectOptions) (*gocb.Cluster, *gocb.Bucket, error) {
	cluster, err := gocb.Connect(opts.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: opts.ConnectTimeout,
			KVTimeout:      opts.KVTimeout,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(opts.Bucket)

	if err := bucket.WaitUntilReady(opts.ConnectTimeout, nil); err != nil {
		_ = cluster.Close(nil)
		return nil, nil, fmt.Errorf("bucket %s not ready: %w", opts.Bucket, err)
	}

	return cluster, bucket, nil
}
