package ledger

import (
	bolt "go.etcd.io/bbolt"
)

// Database layout:
//
//	v1/machines/<machine id>/records/<insurance id> -> record JSON
//	v1/machines/<machine id>/holders/<insurance id>/<pid> -> Holder JSON
const schemaVersion = "v1"

var (
	keyVersion  = []byte(schemaVersion)
	keyMachines = []byte("machines")
	keyRecords  = []byte("records")
	keyHolders  = []byte("holders")
)

// bucketPath names a chain of nested buckets from the database root.
type bucketPath [][]byte

func machineBucket(machineID string, keys ...[]byte) bucketPath {
	return append(bucketPath{keyVersion, keyMachines, []byte(machineID)}, keys...)
}

// get returns the innermost bucket, or nil if any bucket on the path is
// missing.
func (p bucketPath) get(tx *bolt.Tx) *bolt.Bucket {
	b := tx.Bucket(p[0])
	for _, k := range p[1:] {
		if b == nil {
			return nil
		}
		b = b.Bucket(k)
	}
	return b
}

// create returns the innermost bucket, creating every missing bucket on the
// path. tx must be writable.
func (p bucketPath) create(tx *bolt.Tx) (*bolt.Bucket, error) {
	b, err := tx.CreateBucketIfNotExists(p[0])
	for _, k := range p[1:] {
		if err != nil {
			return nil, err
		}
		b, err = b.CreateBucketIfNotExists(k)
	}
	return b, err
}

func recordsBucket(machineID string) bucketPath {
	return machineBucket(machineID, keyRecords)
}

func holdersBucket(machineID string) bucketPath {
	return machineBucket(machineID, keyHolders)
}

func recordHoldersBucket(machineID, insuranceID string) bucketPath {
	return machineBucket(machineID, keyHolders, []byte(insuranceID))
}
