// Package pebblestore is the embedded message store built on Pebble.
//
// DB is a thin wrapper with fsync policy, batches and metrics hooks. Store
// implements storage.Gateway on top of it:
//
//	msg/{id}                         framed record (status byte + JSON + crc32c)
//	qidx/{queue}{id}                 status code, for per-queue listing
//	pidx/{queue}{subject}{id}        present while the message is pending
//	meta/seq                         last assigned id
//
// Usage:
//
//	s, err := pebblestore.OpenStore(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer s.Close()
package pebblestore
