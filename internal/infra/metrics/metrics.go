package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// pending collects every collector declared by this package's init funcs.
var pending struct {
	sync.Mutex
	collectors []prometheus.Collector
}

func register(cs ...prometheus.Collector) {
	pending.Lock()
	pending.collectors = append(pending.collectors, cs...)
	pending.Unlock()
}

// RegisterWith publishes the package collectors on reg. Collectors reg
// already knows are skipped, so repeated calls are safe.
func RegisterWith(reg prometheus.Registerer) error {
	pending.Lock()
	defer pending.Unlock()
	for _, c := range pending.collectors {
		if err := reg.Register(c); err != nil {
			var dup prometheus.AlreadyRegisteredError
			if errors.As(err, &dup) {
				continue
			}
			return err
		}
	}
	return nil
}

// MustRegister publishes the collectors on the default registry and panics
// on a conflicting descriptor.
func MustRegister() {
	if err := RegisterWith(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
