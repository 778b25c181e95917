package store

import (
	"github.com/ChainSafe/chaindb"
)

// OpenBadgerDB opens (creating if necessary) the on-disk badger-backed
// chaindb.Database used as the Escrow Store's storage engine.
func OpenBadgerDB(dataDir string, inMemory bool) (chaindb.Database, error) {
	return chaindb.NewBadgerDB(&chaindb.Config{
		DataDir:  dataDir,
		InMemory: inMemory,
	})
}
