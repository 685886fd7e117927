package diag

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	Emit(r, Info, "page.fetched", F{"page": 1})
	Emit(r, Warn, "item.skipped", F{"field": "title"})
	Emit(r, Warn, "item.skipped", F{"field": "price"})

	assert.Len(t, r.Events(), 3)
	skipped := r.Named("item.skipped")
	assert.Len(t, skipped, 2)
	assert.Equal(t, "price", skipped[1].Fields["field"])
}

func TestEmitNilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, Error, "ignored", nil)
		Emit(Nop, Error, "ignored", nil)
	})
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerolog(zerolog.New(&buf).Level(zerolog.InfoLevel))

	sink.Emit(Event{Level: Debug, Name: "hidden"})
	sink.Emit(Event{Level: Warn, Name: "strategy.failed", Fields: F{"strategy": "static"}})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"event":"strategy.failed"`)
	assert.Contains(t, out, `"strategy":"static"`)
	assert.Contains(t, out, `"level":"warn"`)
}
