package asset

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger"
)

const assetKeyPrefix = "asset:"

// BadgerStore persists asset state in an embedded badger database so that
// ready assets survive process restarts. Each mutation is a single badger
// transaction, which gives the read-modify-write the atomicity the
// generation CAS needs.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore wraps an open badger database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func assetKey(lessonID int64) []byte {
	return []byte(assetKeyPrefix + strconv.FormatInt(lessonID, 10))
}

func getAsset(txn *badger.Txn, lessonID int64) (Asset, bool, error) {
	item, err := txn.Get(assetKey(lessonID))
	if err == badger.ErrKeyNotFound {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return Asset{}, false, err
	}
	var a Asset
	if err := json.Unmarshal(raw, &a); err != nil {
		return Asset{}, false, fmt.Errorf("decode asset %d: %w", lessonID, err)
	}
	return a, true, nil
}

func putAsset(txn *badger.Txn, a Asset) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode asset %d: %w", a.LessonID, err)
	}
	return txn.Set(assetKey(a.LessonID), raw)
}

func (s *BadgerStore) Get(lessonID int64) (Asset, bool, error) {
	var (
		a  Asset
		ok bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		a, ok, err = getAsset(txn, lessonID)
		return err
	})
	return a, ok, err
}

func (s *BadgerStore) BeginProcessing(lessonID int64, sourcePath string) (int64, error) {
	var generation int64
	err := s.db.Update(func(txn *badger.Txn) error {
		a, _, err := getAsset(txn, lessonID)
		if err != nil {
			return err
		}
		a.LessonID = lessonID
		a.Generation++
		a.Status = StatusProcessing
		a.SourcePath = sourcePath
		a.OutputDir = ""
		a.ManifestPath = ""
		a.KeyPath = ""
		a.Error = ""
		a.UpdatedAt = time.Now().UTC()
		generation = a.Generation
		return putAsset(txn, a)
	})
	return generation, err
}

func (s *BadgerStore) CompleteProcessing(lessonID, generation int64, pub Published) (bool, error) {
	var swapped bool
	err := s.db.Update(func(txn *badger.Txn) error {
		a, ok, err := getAsset(txn, lessonID)
		if err != nil {
			return err
		}
		if !ok || a.Generation != generation {
			return nil
		}
		a.Status = StatusReady
		a.SourcePath = ""
		a.OutputDir = pub.OutputDir
		a.ManifestPath = pub.ManifestPath
		a.KeyPath = pub.KeyPath
		a.DurationSeconds = pub.DurationSeconds
		a.SizeBytes = pub.SizeBytes
		a.Error = ""
		a.UpdatedAt = time.Now().UTC()
		swapped = true
		return putAsset(txn, a)
	})
	return swapped, err
}

func (s *BadgerStore) FailProcessing(lessonID, generation int64, reason string) (bool, error) {
	var swapped bool
	err := s.db.Update(func(txn *badger.Txn) error {
		a, ok, err := getAsset(txn, lessonID)
		if err != nil {
			return err
		}
		if !ok || a.Generation != generation {
			return nil
		}
		a.Status = StatusFailed
		a.Error = reason
		a.UpdatedAt = time.Now().UTC()
		swapped = true
		return putAsset(txn, a)
	})
	return swapped, err
}

func (s *BadgerStore) Reset(lessonID int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(assetKey(lessonID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}
