package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/stupside/facet/internal/proxy"
)

// ErrProxyNotFound is returned for unknown proxy names.
var ErrProxyNotFound = proxy.ErrNotFound

const (
	proxyTable = "proxy"
	proxyIndex = "proxies_name"
)

// ProxyStore keeps proxy bindings as JSON values under "proxy:<name>".
type ProxyStore struct {
	db *buntdb.DB
}

// OpenProxyStore opens (or creates) the database at path. ":memory:" keeps
// everything in memory.
func OpenProxyStore(path string) (*ProxyStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening proxy database %s: %w", path, err)
	}
	if err := db.CreateIndex(proxyIndex, proxyTable+":*", buntdb.IndexJSON("name")); err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("indexing proxy database: %w", err)
	}
	db.Shrink()
	return &ProxyStore{db: db}, nil
}

func proxyKey(name string) string {
	return proxyTable + ":" + name
}

func (s *ProxyStore) Get(name string) (proxy.Binding, error) {
	var b proxy.Binding
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(proxyKey(name))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProxyNotFound, name)
		}
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &b)
	})
	if err != nil {
		return proxy.Binding{}, err
	}
	return b, nil
}

// List returns every binding ordered by name.
func (s *ProxyStore) List() ([]proxy.Binding, error) {
	bindings := []proxy.Binding{}
	var decodeErr error
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(proxyIndex, func(key, val string) bool {
			var b proxy.Binding
			if err := json.Unmarshal([]byte(val), &b); err != nil {
				decodeErr = fmt.Errorf("decoding %s: %w", key, err)
				return false
			}
			bindings = append(bindings, b)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing proxies: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return bindings, nil
}

func (s *ProxyStore) Put(b proxy.Binding) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling proxy %s: %w", b.Name, err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(proxyKey(b.Name), string(data), nil)
		return err
	})
}

// Rename replaces the binding stored under oldName with b in one
// transaction. b.Name may equal oldName.
func (s *ProxyStore) Rename(oldName string, b proxy.Binding) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshaling proxy %s: %w", b.Name, err)
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(proxyKey(oldName)); err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrProxyNotFound, oldName)
			}
			return err
		}
		_, _, err := tx.Set(proxyKey(b.Name), string(data), nil)
		return err
	})
}

func (s *ProxyStore) Delete(name string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(proxyKey(name))
		if errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrProxyNotFound, name)
		}
		return err
	})
}

func (s *ProxyStore) Close() error {
	return s.db.Close()
}
