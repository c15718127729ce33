package snapshot

import (
	"bytes"
	_ "embed"
	"sync"
)

//go:embed data/prices.json
var bundledPrices []byte

var (
	bundledOnce  sync.Once
	bundledIndex *Index
	bundledErr   error
)

// Bundled returns the snapshot compiled into the binary. It is parsed once.
func Bundled() (*Index, error) {
	bundledOnce.Do(func() {
		bundledIndex, bundledErr = Decode(bytes.NewReader(bundledPrices))
	})
	return bundledIndex, bundledErr
}
