package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffects(t *testing.T) {
	var toasts []Toast
	var keys []string
	e := Effects{
		Notifier: NotifierFunc(func(t Toast) { toasts = append(toasts, t) }),
		Invalidator: InvalidatorFunc(func(ks ...QueryKey) {
			for _, k := range ks {
				keys = append(keys, k.String())
			}
		}),
	}

	e.Toast(Toast{Title: "hidden"})
	assert.Empty(t, toasts)

	e.ShowToasts = true
	e.Toast(Toast{Title: "shown"})
	assert.Len(t, toasts, 1)

	e.Invalidate(QueryKey{"cameras"}, QueryKey{"cameras", "front"})
	e.Invalidate()
	assert.Equal(t, []string{"cameras", "cameras/front"}, keys)

	Effects{ShowToasts: true}.Toast(Toast{Title: "no notifier"})
	Effects{}.Invalidate(QueryKey{"alerts"})
}
