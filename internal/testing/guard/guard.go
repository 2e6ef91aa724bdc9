package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PARTLINE_TEST_MODE") == "" {
			_ = os.Setenv("PARTLINE_TEST_MODE", "1")
		}
	})
}
