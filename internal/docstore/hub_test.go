package docstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/core"
)

func TestHubLatestWins(t *testing.T) {
	h := NewHub()
	defer h.Close()

	release := make(chan struct{})
	got := make(chan int64, 8)
	first := true
	_, err := h.Add("May", func(s Snapshot) {
		if first {
			first = false
			<-release
		}
		got <- s.Version
	}, nil)
	require.NoError(t, err)

	h.Publish(Snapshot{Month: "May", Version: 1})
	time.Sleep(20 * time.Millisecond)
	h.Publish(Snapshot{Month: "May", Version: 2})
	h.Publish(Snapshot{Month: "May", Version: 4})
	h.Publish(Snapshot{Month: "May", Version: 3})
	close(release)

	assert.Equal(t, int64(1), <-got)
	assert.Equal(t, int64(4), <-got)
	select {
	case v := <-got:
		t.Fatalf("unexpected extra delivery %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubFailAndClose(t *testing.T) {
	h := NewHub()
	errs := make(chan error, 1)
	sub, err := h.Add("June", nil, func(err error) { errs <- err })
	require.NoError(t, err)

	boom := errors.New("boom")
	h.Fail("June", boom)
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("error not delivered")
	}

	assert.Equal(t, 1, h.Len("June"))
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, h.Len("June"))

	h.Close()
	_, err = h.Add("June", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDecodeSanitizes(t *testing.T) {
	tree, err := Decode([]byte(`{"categories":[{"id":1,"name":"Frutas","items":null},{"id":2,"name":"Carnes","items":[{"id":3,"name":"Frango","quantity":-2,"price":10}]}]}`))
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.NotNil(t, tree[0].Items)
	assert.Equal(t, 0.0, tree[1].Items[0].Quantity)

	empty, err := Decode([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, core.Tree{}, empty)

	_, err = Decode([]byte(`nope`))
	assert.Error(t, err)
}

func TestEncodeNil(t *testing.T) {
	b, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"categories":[]}`, string(b))
}
