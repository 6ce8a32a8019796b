package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"reg-scraper/pkg/log"
	"reg-scraper/pkg/models"
	"reg-scraper/pkg/utils"
)

// resultKeyPrefix namespaces verdict keys so the store could share a DB
// with other key families later.
const resultKeyPrefix = "analysis:"

// ResultStore persists one AnalysisRecord per URL in BadgerDB. Verdicts
// accumulate across runs; a stored URL is skipped by the runner.
type ResultStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// OpenResultStore opens (creating if needed) the result database at dir.
func OpenResultStore(dir string, logger *logrus.Entry) (*ResultStore, error) {
	entry := logger.WithField("component", "result_store")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating result store directory %s: %w", utils.ErrFilesystem, dir, err)
	}

	opts := badger.DefaultOptions(dir).
		WithLogger(log.NewBadgerAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: opening result store at %s: %w", utils.ErrDatabase, dir, err)
	}

	entry.WithField("dir", dir).Debug("Result store opened")
	return &ResultStore{db: db, log: entry}, nil
}

func resultKey(url string) []byte {
	return []byte(resultKeyPrefix + url)
}

// Has reports whether a verdict is stored for the URL.
func (s *ResultStore) Has(url string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(resultKey(url))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: checking verdict for %s: %w", utils.ErrDatabase, url, err)
	}
	return found, nil
}

// Get loads the verdict for a URL; the bool reports presence.
func (s *ResultStore) Get(url string) (models.AnalysisRecord, bool, error) {
	var record models.AnalysisRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(resultKey(url))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &record); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return models.AnalysisRecord{}, false, fmt.Errorf("%w: loading verdict for %s: %w", utils.ErrDatabase, url, err)
	}
	return record, found, nil
}

// Put stores a verdict, overwriting any previous one for the URL.
func (s *ResultStore) Put(record models.AnalysisRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encoding verdict for %s: %w", utils.ErrParsing, record.URL, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(resultKey(record.URL), data))
	})
	if err != nil {
		return fmt.Errorf("%w: storing verdict for %s: %w", utils.ErrDatabase, record.URL, err)
	}
	return nil
}

// All returns every stored verdict ordered by source index. Corrupt
// values are logged and skipped.
func (s *ResultStore) All() ([]models.AnalysisRecord, error) {
	var records []models.AnalysisRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(resultKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var record models.AnalysisRecord
				if err := json.Unmarshal(val, &record); err != nil {
					s.log.Warnf("Skipping corrupt verdict at key %s: %v", item.Key(), err)
					return nil
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning result store: %w", utils.ErrDatabase, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SourceIndex < records[j].SourceIndex })
	return records, nil
}

// Close releases the database.
func (s *ResultStore) Close() error {
	return s.db.Close()
}
