package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facevault/internal/models"
)

func photo(id string) *models.CapturedPhoto {
	data := []byte("bytes-" + id)
	return &models.CapturedPhoto{
		RequestID: id,
		SessionID: "s1",
		Timestamp: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
		Data:      data,
		MimeType:  "image/jpeg",
		Filename:  id + ".jpg",
		Size:      len(data),
	}
}

func TestRegistry_ListPreservesOrder(t *testing.T) {
	r := New()
	for _, id := range []string{"c", "a", "b"} {
		require.True(t, r.Add(photo(id)))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].RequestID)
	assert.Equal(t, "a", list[1].RequestID)
	assert.Equal(t, "b", list[2].RequestID)
	assert.Equal(t, "a.jpg", list[1].Filename)
	assert.Equal(t, len("bytes-a"), list[1].Size)
}

func TestRegistry_Get(t *testing.T) {
	r := New()
	r.Add(photo("a"))

	data, mime, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes-a"), data)
	assert.Equal(t, "image/jpeg", mime)

	_, _, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_DuplicateIgnored(t *testing.T) {
	r := New()
	first := photo("a")
	second := photo("a")
	second.Data = []byte("other")

	assert.True(t, r.Add(first))
	assert.False(t, r.Add(second))
	assert.Equal(t, 1, r.Len())

	data, _, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("bytes-a"), data)
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(session int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Add(photo(fmt.Sprintf("s%d-%d", session, i)))
				_ = r.List()
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 400, r.Len())
	assert.Len(t, r.List(), 400)
}
