// Package boltdb provides a credentials.Cache that keeps Credentials in a single bbolt file.
//
// The wallet application populates the file and the provisioning extension reads it.
// Both processes open the database for the duration of a single operation, reads use
// a shared lock.
package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2s"

	"code.issuerext.org/golang/internal/transport"
	"code.issuerext.org/golang/pkg/credentials"
	"code.issuerext.org/golang/pkg/telemetry"
)

const (
	connectTimeout = 5 * time.Second
	maxCredId      = 0xFFFF_FFFF
)

var (
	credTblName  = []byte("credTbl")
	identIdxName = []byte("identIdx")
)

var (
	cborSrz = transport.WrapInSafeSerializer(transport.CBORSerializer{})
	rawSrz  = transport.CBORSerializer{}
)

// Cache is a credentials.Cache & credentials.CacheWriter backed by a bbolt database file.
type Cache struct {
	// Telemetry receives a credential-skipped event per unusable record, may be nil.
	Telemetry telemetry.Sink

	dbpath string
}

// New returns a Cache that persists Credentials in the bbolt database at dbpath.
// It errors if the database schema can not be created.
func New(dbpath string) (*Cache, error) {
	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucketname := range [][]byte{credTblName, identIdxName} {
			_, err := tx.CreateBucketIfNotExists(bucketname)
			if nil != err {
				return wrapError(err, "failed %s bucket creation", bucketname)
			}
		}

		return nil
	})
	if nil != err {
		return nil, wrapError(err, "failed db initialization")
	}

	return &Cache{dbpath: dbpath}, nil
}

// AllCredentials returns the stored Credentials in insertion order.
// Records that can not be decoded or fail Check are left out and reported.
func (self *Cache) AllCredentials(ctx context.Context) ([]credentials.Credential, error) {
	db, err := self.open(ctx, true)
	if nil != err {
		return nil, wrapReadError(err, "failed connecting to the database")
	}
	defer db.Close()

	type skipped struct {
		ref string
		err error
	}
	var skips []skipped
	creds := make([]credentials.Credential, 0, 4)
	err = db.View(func(tx *bolt.Tx) error {
		sch, err := loadSchema(tx)
		if nil != err {
			return err
		}

		return sch.credTbl.ForEach(func(k, v []byte) error {
			cred := credentials.Credential{}
			err := rawSrz.Unmarshal(v, &cred)
			if nil != err {
				skips = append(skips, skipped{ref: fmt.Sprintf("%X", k), err: err})
			} else {
				creds = append(creds, cred)
			}

			return ctx.Err()
		})
	})
	if nil != err {
		return nil, wrapReadError(err, "failed db.View")
	}

	for _, skip := range skips {
		credentials.ReportSkipped(ctx, self.Telemetry, skip.ref, skip.err)
	}

	return credentials.KeepValid(ctx, self.Telemetry, creds), nil
}

// LoadByIdentifier loads the Credential with identifier into dst.
// It returns true if the Credential was found and successfully loaded.
func (self *Cache) LoadByIdentifier(ctx context.Context, identifier string, dst *credentials.Credential) (bool, error) {
	db, err := self.open(ctx, true)
	if nil != err {
		return false, wrapReadError(err, "failed connecting to the database")
	}
	defer db.Close()

	var found bool
	err = db.View(func(tx *bolt.Tx) error {
		sch, err := loadSchema(tx)
		if nil != err {
			return err
		}
		found, err = sch.loadByIdentifier(identifier, dst)

		return err
	})

	return found, wrapReadError(err, "failed db.View") // nil if err is nil
}

// SaveCredential saves cred, replacing the stored Credential with same Identifier.
// A replaced Credential keeps its position.
func (self *Cache) SaveCredential(ctx context.Context, cred credentials.Credential) error {
	srzcred, err := cborSrz.Marshal(cred)
	if nil != err {
		return wrapInvalidError(err, "can not save credential")
	}

	db, err := self.open(ctx, false)
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		sch, err := loadSchema(tx)
		if nil != err {
			return err
		}

		identKey := hash(cred.Identifier)
		credKey := sch.identIdx.Get(identKey)
		if nil == credKey {
			if sch.credTbl.Sequence() >= maxCredId {
				return newError("too many credentials")
			}
			seq, err := sch.credTbl.NextSequence()
			if nil != err {
				return wrapError(err, "failed generating credential key")
			}
			credKey = byteId(seq)
		} else {
			// bbolt values are only valid during the transaction
			credKey = append([]byte(nil), credKey...)
		}

		err = sch.credTbl.Put(credKey, srzcred)
		if nil != err {
			return wrapError(err, "failed storing credential in bucket")
		}

		err = sch.identIdx.Put(identKey, credKey)
		if nil != err {
			return wrapError(err, "failed updating the identIdx bucket")
		}

		return nil
	})

	return wrapError(err, "failed db.Update") // nil if err is nil
}

// RemoveCredential removes the Credential with identifier.
// It returns true if the Credential was effectively removed.
func (self *Cache) RemoveCredential(ctx context.Context, identifier string) (bool, error) {
	db, err := self.open(ctx, false)
	if nil != err {
		return false, wrapError(err, "failed connecting to the database")
	}
	defer db.Close()

	var removed bool
	err = db.Update(func(tx *bolt.Tx) error {
		sch, err := loadSchema(tx)
		if nil != err {
			return err
		}

		identKey := hash(identifier)
		credKey := sch.identIdx.Get(identKey)
		if nil == credKey {
			return nil
		}
		credKey = append([]byte(nil), credKey...)

		err = sch.credTbl.Delete(credKey)
		if nil != err {
			return err
		}
		err = sch.identIdx.Delete(identKey)
		if nil != err {
			return err
		}
		removed = true

		return nil
	})

	return removed, wrapError(err, "failed db.Update")
}

// Count returns the number of Credentials in the Cache.
// It returns -1 in case of error.
func (self *Cache) Count() int {
	db, err := self.open(context.Background(), true)
	if nil != err {
		return -1
	}
	defer db.Close()

	var count int
	err = db.View(func(tx *bolt.Tx) error {
		sch, err := loadSchema(tx)
		if nil != err {
			return err
		}
		count = sch.credTbl.Stats().KeyN

		return nil
	})
	if nil != err {
		return -1
	}

	return count
}

func (self *Cache) open(ctx context.Context, readonly bool) (*bolt.DB, error) {
	err := ctx.Err()
	if nil != err {
		return nil, err
	}
	return bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout, ReadOnly: readonly})
}

var (
	_ credentials.Cache       = &Cache{}
	_ credentials.CacheWriter = &Cache{}
)

// schema holds Cache buckets reference
type schema struct {
	credTbl  *bolt.Bucket
	identIdx *bolt.Bucket
}

func loadSchema(tx *bolt.Tx) (schema, error) {
	rv := schema{
		credTbl:  tx.Bucket(credTblName),
		identIdx: tx.Bucket(identIdxName),
	}
	var err error
	if nil == rv.credTbl || nil == rv.identIdx {
		err = newError("1 or more bucket is missing")
	}

	return rv, err
}

func (self schema) loadByIdentifier(identifier string, dst *credentials.Credential) (bool, error) {
	credKey := self.identIdx.Get(hash(identifier))
	if nil == credKey {
		return false, nil
	}
	srzcred := self.credTbl.Get(credKey)
	if nil == srzcred {
		return false, nil
	}

	err := cborSrz.Unmarshal(srzcred, dst)
	if nil != err {
		return false, wrapError(err, "failed unmarshaling credential")
	}

	return true, nil
}

// hash returns the BLAKE2s-256 digest of identifier.
// identIdx keys are digests to keep identifiers out of the index.
func hash(identifier string) []byte {
	sum := blake2s.Sum256([]byte(identifier))
	return sum[:]
}

// byteId returns 8 bytes BigEndian encoding of seq
func byteId(seq uint64) []byte {
	rv := make([]byte, 8)
	binary.BigEndian.PutUint64(rv, seq)

	return rv
}
